package scoring

// Weights holds every constant the engine uses. DefaultWeights returns the
// shipped values; configuration may override any of them.
type Weights struct {
	PlaytimeWeight float64 `mapstructure:"playtime_weight" json:"playtime_weight"`

	StatusPoints        map[string]int `mapstructure:"status_points" json:"status_points"`
	UnknownStatusPoints int            `mapstructure:"unknown_status_points" json:"unknown_status_points"`

	SecondaryWeight float64 `mapstructure:"secondary_weight" json:"secondary_weight"`
	// HardcoreWeight is the extra credit for an earn in the harder mode,
	// on top of the base earn.
	HardcoreWeight    float64            `mapstructure:"hardcore_weight" json:"hardcore_weight"`
	Normalizers       map[string]float64 `mapstructure:"normalizers" json:"normalizers"`
	DefaultNormalizer float64            `mapstructure:"default_normalizer" json:"default_normalizer"`
	MultiplierMin     float64            `mapstructure:"multiplier_min" json:"multiplier_min"`
	MultiplierMax     float64            `mapstructure:"multiplier_max" json:"multiplier_max"`

	ConfidenceFloor     int       `mapstructure:"confidence_floor" json:"confidence_floor"`
	TitleThresholds     []int     `mapstructure:"title_thresholds" json:"title_thresholds"`
	TitleIncrement      int       `mapstructure:"title_increment" json:"title_increment"`
	HourThresholds      []float64 `mapstructure:"hour_thresholds" json:"hour_thresholds"`
	HourIncrement       int       `mapstructure:"hour_increment" json:"hour_increment"`
	SyncedThreshold     int       `mapstructure:"synced_threshold" json:"synced_threshold"`
	SyncedIncrement     int       `mapstructure:"synced_increment" json:"synced_increment"`
	HistoricalIncrement int       `mapstructure:"historical_increment" json:"historical_increment"`
}

// DefaultWeights returns the shipped scoring constants.
func DefaultWeights() Weights {
	return Weights{
		PlaytimeWeight: 100,
		StatusPoints: map[string]int{
			"completed":   40,
			"playing":     20,
			"owned":       10,
			"back_burner": 6,
			"wishlist":    3,
			"dropped":     1,
		},
		UnknownStatusPoints: 5,
		SecondaryWeight:     150,
		HardcoreWeight:      0.5,
		Normalizers: map[string]float64{
			"steam":             50,
			"retroachievements": 40,
			"psn":               30,
		},
		DefaultNormalizer:   40,
		MultiplierMin:       0.85,
		MultiplierMax:       1.15,
		ConfidenceFloor:     20,
		TitleThresholds:     []int{10, 50},
		TitleIncrement:      10,
		HourThresholds:      []float64{50, 500},
		HourIncrement:       10,
		SyncedThreshold:     5,
		SyncedIncrement:     5,
		HistoricalIncrement: 10,
	}
}

func (w Weights) normalizer(source string) float64 {
	if n, ok := w.Normalizers[source]; ok && n > 0 {
		return n
	}
	if w.DefaultNormalizer > 0 {
		return w.DefaultNormalizer
	}
	return 1
}

// multiplier maps a completion ratio onto [MultiplierMin, MultiplierMax].
func (w Weights) multiplier(ratio float64) float64 {
	m := w.MultiplierMin + (w.MultiplierMax-w.MultiplierMin)*ratio
	if m < w.MultiplierMin {
		return w.MultiplierMin
	}
	if m > w.MultiplierMax {
		return w.MultiplierMax
	}
	return m
}
