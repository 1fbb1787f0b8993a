package domain

// Emission factors in kg CO2e per unit quantity (km, kg, meal, kWh). The table holds
// only non-negative values; negative reported impacts come from the baseline
// substitution applied in ReportedImpact, not from the table.
var emissionFactors = map[Category]map[ActivityType]float64{
	CategoryTransport: {
		TransportCar:    0.12,
		TransportBus:    0.05,
		TransportTrain:  0.03,
		TransportFlight: 0.15,
		TransportBike:   0,
		TransportWalk:   0,
	},
	CategoryWaste: {
		WasteGeneral:       2.5,
		WasteRecyclable:    1.0,
		WasteBiodegradable: 0.8,
		WasteCompost:       0.2,
	},
	CategoryDiet: {
		DietMeat:       3.0,
		DietFish:       1.5,
		DietVegetarian: 1.0,
		DietVegan:      0.5,
	},
	CategoryEnergy: {
		EnergyFossil:    0.5,
		EnergyRenewable: 0.1,
		EnergyMixed:     0.3,
		EnergySaved:     0,
	},
}

// Baseline activity per category used for the substitution convention: saved
// emissions are measured against what the dirtiest common alternative would have
// produced.
var baselines = map[Category]ActivityType{
	CategoryTransport: TransportCar,
	CategoryWaste:     WasteGeneral,
	CategoryDiet:      DietMeat,
	CategoryEnergy:    EnergyFossil,
}

// Activity types that stand in for a higher-emission baseline. Their reported impact
// is actual minus baseline, which is negative (or zero) for equal quantity.
var substitutes = map[Category]map[ActivityType]bool{
	CategoryTransport: {TransportBike: true, TransportWalk: true},
	CategoryWaste:     {WasteRecyclable: true, WasteBiodegradable: true, WasteCompost: true},
	CategoryDiet:      {DietFish: true, DietVegetarian: true, DietVegan: true},
	CategoryEnergy:    {EnergyRenewable: true, EnergyMixed: true, EnergySaved: true},
}

// EmissionFactor looks up the factor for a (category, activity type) pair.
func EmissionFactor(category Category, activityType ActivityType) (float64, bool) {
	factors, ok := emissionFactors[category]
	if !ok {
		return 0, false
	}
	factor, ok := factors[activityType]
	return factor, ok
}

// KnownActivityType reports whether the pair exists in the factor table.
func KnownActivityType(category Category, activityType ActivityType) bool {
	_, ok := EmissionFactor(category, activityType)
	return ok
}

// IsSubstitute reports whether the activity type is accounted against its category
// baseline.
func IsSubstitute(category Category, activityType ActivityType) bool {
	return substitutes[category][activityType]
}

// ComputeImpact returns the raw emissions for the activity: factor times quantity.
func ComputeImpact(category Category, activityType ActivityType, quantity float64) (float64, error) {
	factor, ok := EmissionFactor(category, activityType)
	if !ok {
		return 0, ErrUnknownType
	}
	return factor * quantity, nil
}

// ReportedImpact returns the signed impact recorded for the activity. Substitute
// types report actual minus baseline emissions, so a cleaner choice comes out
// negative and feeds the carbon-saved accumulator.
func ReportedImpact(category Category, activityType ActivityType, quantity float64) (float64, error) {
	actual, err := ComputeImpact(category, activityType, quantity)
	if err != nil {
		return 0, err
	}
	if !IsSubstitute(category, activityType) {
		return actual, nil
	}
	baseline, err := ComputeImpact(category, baselines[category], quantity)
	if err != nil {
		return 0, err
	}
	return actual - baseline, nil
}
