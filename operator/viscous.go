package operator

// AddViscous accumulates the viscous term rhs += −ν|k|²·U componentwise.
func AddViscous(rhs, u Velocity, nu float64) {
	g := u[0].Grid
	for c := 0; c < 3; c++ {
		for i1 := 0; i1 < g.N1; i1++ {
			for i2 := 0; i2 < g.N2; i2++ {
				base := (i1*g.N2 + i2) * g.H3
				for h := 0; h < g.H3; h++ {
					factor := complex(-nu*g.K2(i1, i2, h), 0)
					rhs[c].Data[base+h] += factor * u[c].Data[base+h]
				}
			}
		}
	}
}

// Dissipation is the instantaneous viscous dissipation rate 2ν Σ w|k|²·½|U|²,
// used by the energy budget diagnostic.
func Dissipation(u Velocity, nu float64) float64 {
	g := u[0].Grid
	var d float64
	for c := 0; c < 3; c++ {
		for i1 := 0; i1 < g.N1; i1++ {
			for i2 := 0; i2 < g.N2; i2++ {
				base := (i1*g.N2 + i2) * g.H3
				for h := 0; h < g.H3; h++ {
					v := u[c].Data[base+h]
					d += g.Weight(h) * g.K2(i1, i2, h) * (real(v)*real(v) + imag(v)*imag(v))
				}
			}
		}
	}
	return nu * d
}
