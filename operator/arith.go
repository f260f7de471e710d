package operator

import "math"

// Arithmetic helpers for the mask schemes. Arguments are radial shell
// indices, bounded by √3·N/2, so exact trial division is cheap.

// Gcd is the non-negative greatest common divisor.
func Gcd(a, b int) int {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// IsPrime reports primality by trial division.
func IsPrime(n int) bool {
	if n < 2 {
		return false
	}
	for d := 2; d*d <= n; d++ {
		if n%d == 0 {
			return false
		}
	}
	return true
}

// VonMangoldt is Λ(n): log p when n = p^m for a prime p, else 0.
func VonMangoldt(n int) float64 {
	if n < 2 {
		return 0
	}
	for p := 2; p*p <= n; p++ {
		if n%p == 0 {
			for n%p == 0 {
				n /= p
			}
			if n == 1 {
				return math.Log(float64(p))
			}
			return 0
		}
	}
	// n itself is prime.
	return math.Log(float64(n))
}

// Primorial returns the product of all primes ≤ p, the usual p# notation.
func Primorial(p int) int {
	prod := 1
	for q := 2; q <= p; q++ {
		if IsPrime(q) {
			prod *= q
		}
	}
	return prod
}
