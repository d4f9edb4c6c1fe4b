package signatures

var builtinTables = map[Platform]map[string][]string{
	Java: {
		"Wurst":      {"wurst"},
		"Impact":     {"impact"},
		"Aristois":   {"aristois"},
		"Sigma":      {"sigma"},
		"Kami Blue":  {"kami", "blue"},
		"Future":     {"future"},
		"RusherHack": {"rusherhack", "rusher"},
		"Phobos":     {"phobos"},
	},
	Bedrock: {
		"Toolbox": {"toolbox"},
		"Horion":  {"horion"},
		"Zephyr":  {"zephyr"},
		"Beton":   {"beton"},
	},
}

// Default returns the built-in database.
func Default() *Database {
	return New(builtinTables)
}
