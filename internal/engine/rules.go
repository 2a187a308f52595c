package engine

import "fmt"

// rule inspects one aspect of the household and yields at most one tip
type rule func(in AnalysisInput, level OptimizationLevel) (Tip, bool)

// rules in emission order. Emission order breaks ties after sorting.
var rules = []rule{
	highDrawRule,
	highDailyRule,
	temperatureRule,
	humidityRule,
	windRule,
	skyRule,
	timeOfDayRule,
	standbyRule,
	lightingMixRule,
	plugMixRule,
}

// priorityUnlessMinimal is the common "medium, but low when MINIMAL" pattern
func priorityUnlessMinimal(level OptimizationLevel) Priority {
	if level == LevelMinimal {
		return PriorityLow
	}
	return PriorityMedium
}

func highDrawRule(in AnalysisInput, level OptimizationLevel) (Tip, bool) {
	if in.CurrentPower > 3000 {
		return Tip{
			Subject:               "System",
			Category:              CategorySystem,
			Title:                 "Very high consumption",
			Description:           fmt.Sprintf("Current draw of %d W is well above normal", int(in.CurrentPower)),
			EstimatedDailySavings: 15,
			Priority:              PriorityHigh,
			Action:                "Switch off devices you are not using",
			Impact:                "Save up to 50 per day",
		}, true
	}
	if in.CurrentPower > 2000 && level != LevelMinimal {
		return Tip{
			Subject:               "System",
			Category:              CategorySystem,
			Title:                 "Elevated consumption",
			Description:           fmt.Sprintf("Current draw is %d W", int(in.CurrentPower)),
			EstimatedDailySavings: 8,
			Priority:              PriorityMedium,
			Action:                "Consider switching off non-essential devices",
			Impact:                "Save up to 25 per day",
		}, true
	}
	return Tip{}, false
}

func highDailyRule(in AnalysisInput, level OptimizationLevel) (Tip, bool) {
	if in.DailyConsumptionKWh <= 15 {
		return Tip{}, false
	}
	priority := PriorityMedium
	if level == LevelAggressive {
		priority = PriorityHigh
	}
	return Tip{
		Subject:               "System",
		Category:              CategorySystem,
		Title:                 "High daily consumption",
		Description:           fmt.Sprintf("%.1f kWh used today (typical is 10-12 kWh)", in.DailyConsumptionKWh),
		EstimatedDailySavings: 30,
		Priority:              priority,
		Action:                "Turn on energy saving mode",
		Impact:                "Save 100-150 per day",
	}, true
}

func temperatureRule(in AnalysisInput, level OptimizationLevel) (Tip, bool) {
	if in.Weather == nil || in.Weather.Temperature == nil {
		return Tip{}, false
	}
	temp := *in.Weather.Temperature

	if temp > 25 {
		return Tip{
			Subject:               "Climate",
			Category:              CategoryClimate,
			Title:                 "Hot outside: switch heating off",
			Description:           fmt.Sprintf("It is %.1f°C outside, heating is wasted energy", temp),
			EstimatedDailySavings: 20,
			Priority:              PriorityHigh,
			Action:                "Turn off heaters",
			Impact:                "Save 40 per day",
		}, true
	}
	if temp < 5 && level == LevelAggressive {
		return Tip{
			Subject:               "Climate",
			Category:              CategoryClimate,
			Title:                 "Cold outside: optimise heating",
			Description:           fmt.Sprintf("It is %.1f°C outside, use scheduled heating", temp),
			EstimatedDailySavings: 5,
			Priority:              PriorityMedium,
			Action:                "Use a programmable thermostat",
			Impact:                "Save 15 per day",
		}, true
	}
	return Tip{}, false
}

func humidityRule(in AnalysisInput, level OptimizationLevel) (Tip, bool) {
	if in.Weather == nil || in.Weather.Humidity == nil || *in.Weather.Humidity <= 70 {
		return Tip{}, false
	}
	return Tip{
		Subject:               "Ventilation",
		Category:              CategoryPlug,
		Title:                 "High humidity",
		Description:           fmt.Sprintf("Humidity is %.0f%%, natural ventilation works better", *in.Weather.Humidity),
		EstimatedDailySavings: 3,
		Priority:              priorityUnlessMinimal(level),
		Action:                "Open windows instead of running air conditioning",
		Impact:                "Save 10 per day",
	}, true
}

func windRule(in AnalysisInput, _ OptimizationLevel) (Tip, bool) {
	if in.Weather == nil || in.Weather.Wind == nil || *in.Weather.Wind <= 20 {
		return Tip{}, false
	}
	return Tip{
		Subject:               "Windows",
		Category:              CategoryClimate,
		Title:                 "Windy: check window seals",
		Description:           fmt.Sprintf("Wind at %.0f km/h pulls warm air out through gaps", *in.Weather.Wind),
		EstimatedDailySavings: 3,
		Priority:              PriorityMedium,
		Action:                "Seal draughty windows and doors",
		Impact:                "Save 8 per day",
	}, true
}

// skyRule reads the WMO code: 80-82 are rain showers, 1-3 clear to overcast
func skyRule(in AnalysisInput, _ OptimizationLevel) (Tip, bool) {
	if in.Weather == nil || in.Weather.Code == nil {
		return Tip{}, false
	}
	switch code := *in.Weather.Code; {
	case code >= 80 && code <= 82:
		return Tip{
			Subject:               "Lighting",
			Category:              CategoryLight,
			Title:                 "Rain: make the most of daylight",
			Description:           "Showers outside, keep blinds open and light only where you work",
			EstimatedDailySavings: 1,
			Priority:              PriorityLow,
			Action:                "Open blinds before switching lamps on",
			Impact:                "Save 3 per day",
		}, true
	case code >= 1 && code <= 3:
		return Tip{
			Subject:               "Lighting",
			Category:              CategoryLight,
			Title:                 "Sunny: use natural light",
			Description:           "Clear skies give enough daylight indoors",
			EstimatedDailySavings: 1.5,
			Priority:              PriorityLow,
			Action:                "Keep lamps off while the sun is up",
			Impact:                "Save 4 per day",
		}, true
	}
	return Tip{}, false
}

func timeOfDayRule(in AnalysisInput, level OptimizationLevel) (Tip, bool) {
	switch in.TimeOfDay {
	case Morning:
		return Tip{
			Subject:               "Lighting",
			Category:              CategoryLight,
			Title:                 "Morning: use daylight",
			Description:           "Morning hours have the most natural light",
			EstimatedDailySavings: 2,
			Priority:              PriorityLow,
			Action:                "Turn off lamps you do not need",
			Impact:                "Save 5 per day",
		}, true
	case Afternoon:
		return Tip{
			Subject:               "Lighting",
			Category:              CategoryLight,
			Title:                 "Daytime: lights off",
			Description:           "Daylight is bright enough, artificial light is not needed",
			EstimatedDailySavings: 4,
			Priority:              priorityUnlessMinimal(level),
			Action:                "Switch off unnecessary lighting",
			Impact:                "Save 12 per day",
		}, true
	case Evening:
		return Tip{
			Subject:               "Lighting",
			Category:              CategoryLight,
			Title:                 "Evening: light locally",
			Description:           "Use task lamps instead of ceiling lights",
			EstimatedDailySavings: 2.5,
			Priority:              PriorityLow,
			Action:                "Use local lamps",
			Impact:                "Save 7 per day",
		}, true
	case Night:
		return Tip{
			Subject:               "Standby devices",
			Category:              CategoryPlug,
			Title:                 "Night: cut standby power",
			Description:           "Few devices are in use at night",
			EstimatedDailySavings: 1,
			Priority:              PriorityLow,
			Action:                "Put devices into sleep mode",
			Impact:                "Save 3 per day",
		}, true
	}
	return Tip{}, false
}

func standbyRule(in AnalysisInput, level OptimizationLevel) (Tip, bool) {
	if in.CurrentPower >= 100 || in.DailyConsumptionKWh <= 10 {
		return Tip{}, false
	}
	return Tip{
		Subject:               "System",
		Category:              CategorySystem,
		Title:                 "Standby drain",
		Description:           "Many devices in standby are still drawing power",
		EstimatedDailySavings: 5,
		Priority:              priorityUnlessMinimal(level),
		Action:                "Unplug devices when they are not in use",
		Impact:                "Save 20 per day",
	}, true
}

func lightingMixRule(in AnalysisInput, _ OptimizationLevel) (Tip, bool) {
	if in.DeviceMix == nil || in.DeviceMix[CategoryLight] < 3 || in.CurrentPower <= 1500 {
		return Tip{}, false
	}
	return Tip{
		Subject:               "Lighting",
		Category:              CategoryLight,
		Title:                 "Optimise lighting",
		Description:           "Many lamps are on at the same time",
		EstimatedDailySavings: 4,
		Priority:              PriorityMedium,
		Action:                "Keep only the zones you need lit",
		Impact:                "Save 10-15 per day",
	}, true
}

func plugMixRule(in AnalysisInput, _ OptimizationLevel) (Tip, bool) {
	if in.DeviceMix == nil || in.DeviceMix[CategoryPlug] < 2 || in.DailyConsumptionKWh <= 12 {
		return Tip{}, false
	}
	return Tip{
		Subject:               "Sockets",
		Category:              CategoryPlug,
		Title:                 "Check socket loads",
		Description:           "Several sockets may be drawing background power",
		EstimatedDailySavings: 3,
		Priority:              PriorityLow,
		Action:                "Unplug idle chargers and adapters",
		Impact:                "Save 5-8 per day",
	}, true
}
