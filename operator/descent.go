package operator

// Descent adds the regularizing term D = −η·Π((1 + α|k|²)U), the projected
// spectral gradient of T = ½‖u‖² + α‖∇u‖². With η = 0 the stage contributes
// nothing, which is exactly equivalent to leaving it unconfigured.
type Descent struct {
	Eta   float64
	Alpha float64
}

// Add accumulates the descent term into rhs. The input state is already
// divergence-free and the factor is scalar per mode, so the result needs no
// separate projection.
func (d *Descent) Add(rhs, u Velocity) {
	if d == nil || d.Eta == 0 {
		return
	}
	g := u[0].Grid
	for c := 0; c < 3; c++ {
		for i1 := 0; i1 < g.N1; i1++ {
			for i2 := 0; i2 < g.N2; i2++ {
				base := (i1*g.N2 + i2) * g.H3
				for h := 0; h < g.H3; h++ {
					factor := complex(-d.Eta*(1+d.Alpha*g.K2(i1, i2, h)), 0)
					rhs[c].Data[base+h] += factor * u[c].Data[base+h]
				}
			}
		}
	}
}
