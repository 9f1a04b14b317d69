package psd

// blendModeKeyNames maps a layer record's 4-byte blend-mode key to its
// human-readable name. Grounded on the teacher's blendModeString
// (layer.go); kept as a standalone table (rather than the teacher's 26
// per-mode pixel-blend functions in the original blend_modes.go) because
// the core only implements normal/source-over compositing (spec §4.8)
// and uses this table solely to name a layer's mode and to detect
// "non-normal" for strict-mode's UnsupportedBlendMode.
var blendModeKeyNames = map[string]string{
	"norm": "normal",
	"pass": "passthru",
	"dark": "darken",
	"lite": "lighten",
	"hue ": "hue",
	"sat ": "saturation",
	"colr": "color",
	"lum ": "luminosity",
	"mul ": "multiply",
	"scrn": "screen",
	"diss": "dissolve",
	"over": "overlay",
	"hLit": "hard_light",
	"sLit": "soft_light",
	"diff": "difference",
	"smud": "exclusion",
	"div ": "color_dodge",
	"idiv": "color_burn",
	"lbrn": "linear_burn",
	"lddg": "linear_dodge",
	"vLit": "vivid_light",
	"lLit": "linear_light",
	"pLit": "pin_light",
	"hMix": "hard_mix",
	"lgCl": "lighter_color",
	"dkCl": "darker_color",
	"fsub": "subtract",
	"fdiv": "divide",
}
