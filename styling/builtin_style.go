package styling

// BuiltinStyle returns the style used when no style file is given. Bigger roads get thicker lines.
func BuiltinStyle() *Style {
	return &Style{
		ID: BUILTIN_STYLEID,
		LineWidths: CategoryStyleMap{
			"motorway":      5,
			"trunk":         5,
			"primary":       4,
			"secondary":     3.5,
			"tertiary":      3,
			"residential":   2,
			"living_street": 1.5,
		},
	}
}
