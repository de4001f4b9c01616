package shade

import "math"

// SaturationVaporPressure is in mbar for a temperature in °C.
func SaturationVaporPressure(t float64) float64 {
	return 6.1275 * math.Exp(17.27*t/(237.3+t))
}

// Pressure is the mean air pressure in mbar at an elevation in metres.
func Pressure(elevation float64) float64 {
	return 1013 - 0.1055*elevation
}

// LatentHeat of vaporization in J/kg at water temperature t °C.
func LatentHeat(t float64) float64 {
	return 1000 * (2501.4 + 1.83*t)
}

// Longwave is the net longwave flux into the water: atmospheric radiation
// through the open sky, back radiation from land cover and emission from the
// water surface. ea is the air vapour pressure in mbar.
func Longwave(airTemp, waterTemp, ea, cloud, skyView float64) float64 {
	ta := airTemp + kelvin
	emissivity := 1.72 * math.Pow(ea*0.1/ta, 1.0/7.0) * (1 + 0.22*cloud*cloud)
	emissivity = math.Min(emissivity, 1)

	atm := WaterEmissivity * skyView * emissivity * StefanBoltzmann * math.Pow(ta, 4)
	cover := WaterEmissivity * (1 - skyView) * WaterEmissivity * StefanBoltzmann * math.Pow(ta, 4)
	back := -WaterEmissivity * StefanBoltzmann * math.Pow(waterTemp+kelvin, 4)
	return atm + cover + back
}

// Conduction is the bed to water flux for a sediment layer of the given
// conductivity and depth.
func Conduction(conductivity, depth, sedimentTemp, waterTemp float64) float64 {
	if depth <= 0 {
		return 0
	}
	return conductivity * (sedimentTemp - waterTemp) / (depth / 2)
}
