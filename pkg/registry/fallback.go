package registry

// fallbackVersions pins a known-good range for every package the default
// step catalog declares. These are returned whenever live resolution is
// unavailable, and seed the descriptor before resolution runs.
var fallbackVersions = map[string]string{
	"react":                       "^19.0.0",
	"react-dom":                   "^19.0.0",
	"react-router-dom":            "^7.1.0",
	"zustand":                     "^5.0.0",
	"@reduxjs/toolkit":            "^2.5.0",
	"react-redux":                 "^9.2.0",
	"vite":                        "^6.0.0",
	"@vitejs/plugin-react":        "^4.3.0",
	"typescript":                  "^5.7.0",
	"@types/react":                "^19.0.0",
	"@types/react-dom":            "^19.0.0",
	"tailwindcss":                 "^4.0.0",
	"@tailwindcss/vite":           "^4.0.0",
	"eslint":                      "^9.17.0",
	"@eslint/js":                  "^9.17.0",
	"eslint-plugin-react-hooks":   "^5.1.0",
	"eslint-plugin-react-refresh": "^0.4.16",
	"globals":                     "^15.14.0",
	"typescript-eslint":           "^8.18.0",
	"prettier":                    "^3.4.0",
}

// maxMajorCeilings caps automatic upgrades for packages whose next major
// release breaks their plugin ecosystem. eslint stays on v9 until the
// flat-config plugin landscape catches up with v10.
var maxMajorCeilings = map[string]uint64{
	"eslint":     9,
	"@eslint/js": 9,
}

// PrefetchPackages are warmed in the background at process start so the
// cache is populated by the time a run finalizes its descriptor.
var PrefetchPackages = []string{
	"react",
	"react-dom",
	"vite",
	"@vitejs/plugin-react",
	"typescript",
	"tailwindcss",
	"eslint",
}

// FallbackVersion returns the pinned range for a known package, or the
// wildcard "latest" for unknown ones.
func FallbackVersion(name string) string {
	if v, ok := fallbackVersions[name]; ok {
		return v
	}
	return "latest"
}

// MaxMajor returns the major-version ceiling for name, if any.
func MaxMajor(name string) (uint64, bool) {
	c, ok := maxMajorCeilings[name]
	return c, ok
}
