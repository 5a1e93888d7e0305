package vec

import "math"

// CLight is the speed of light in cm/s, the unit system the whole core
// works in (cm, s, Hz, erg).
const CLight = 2.99792458e10

// DopplerFactor returns D = nu_cmf/nu_rf for a packet at position pos,
// rest-frame direction dir, and lab time t, under homologous expansion
// v = pos/t. relativistic selects between the exact special-relativistic
// form and the first-order approximation (config.UseRelativisticDopplerShift
// in the core).
//
// nu_rf = nu_cmf/D and e_rf = e_cmf/D; D < 1 when the packet is
// receding from the origin along dir (redshift).
func DopplerFactor(pos, dir Vec3, t float64, relativistic bool) float64 {
	beta := pos.Scale(1 / (CLight * t))
	mu := dir.Dot(beta)
	if !relativistic {
		return 1 - mu
	}
	beta2 := beta.Dot(beta)
	gamma := 1 / math.Sqrt(1-beta2)
	return gamma * (1 - mu)
}

// Aberrate transforms a unit direction ncmf, specified in the frame
// comoving with velocity v = pos/t relative to the rest frame, into the
// corresponding rest-frame direction. Used both to convert a freshly
// sampled isotropic-in-cmf emission direction to rf (emit_rpkt,
// event_thick_cell) and, with -v, for the reverse transform.
func Aberrate(ncmf, pos Vec3, t float64, relativistic bool) Vec3 {
	beta := pos.Scale(1 / (CLight * t))
	if !relativistic {
		return ncmf
	}
	beta2 := beta.Dot(beta)
	if beta2 == 0 {
		return ncmf
	}
	gamma := 1 / math.Sqrt(1-beta2)
	muPrime := ncmf.Dot(beta)

	bHat := beta.Scale(1 / math.Sqrt(beta2))
	nParallelPrime := bHat.Scale(ncmf.Dot(bHat))
	nPerpPrime := ncmf.Sub(nParallelPrime)

	denom := 1 + muPrime
	nParallel := bHat.Scale(ncmf.Dot(bHat) + math.Sqrt(beta2)).Scale(1 / denom)
	nPerp := nPerpPrime.Scale(1 / (gamma * denom))

	return nParallel.Add(nPerp).Normalize()
}

// IsotropicUnitVector samples a direction uniform on S^2 using the standard
// rejection-free transform z = 1-2U1, phi = 2*pi*U2.
func IsotropicUnitVector(u1, u2 float64) Vec3 {
	z := 1 - 2*u1
	r := math.Sqrt(math.Max(0, 1-z*z))
	phi := 2 * math.Pi * u2
	return Vec3{r * math.Cos(phi), r * math.Sin(phi), z}
}
