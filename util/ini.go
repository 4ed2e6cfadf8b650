package util

import (
	"gopkg.in/ini.v1"
)

// Ini loads an ini file and returns it section by section:
// section name -> key -> value. Keys outside any section end up in "".
func Ini(filename string) (map[string]map[string]string, error) {
	cfg, err := ini.Load(filename)
	if err != nil {
		return nil, err
	}
	var result = make(map[string]map[string]string)
	for _, section := range cfg.Sections() {
		name := section.Name()
		if name == ini.DefaultSection {
			name = ""
		}
		result[name] = section.KeysHash()
	}
	return result, nil
}
