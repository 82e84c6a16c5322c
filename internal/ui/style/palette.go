package style

import "github.com/charmbracelet/lipgloss"

var (
	Cyan    = lipgloss.Color("#00E5FF") // headers
	Magenta = lipgloss.Color("#FF1B6B")
	Yellow  = lipgloss.Color("#FFB500") // pending rows
	Green   = lipgloss.Color("#2AFFAA") // gains
	Red     = lipgloss.Color("#FF5555") // losses and failed rows

	Base02 = lipgloss.Color("#262831")
	Base01 = lipgloss.Color("#6C7280")
	Base2  = lipgloss.Color("#ECEFF4")
)

// Palette provides centralized color management for terminal output.
type Palette struct {
	Primary       lipgloss.Color
	Secondary     lipgloss.Color
	Gain          lipgloss.Color
	Loss          lipgloss.Color
	Warning       lipgloss.Color
	Text          lipgloss.Color
	TextMuted     lipgloss.Color
	BackgroundAlt lipgloss.Color
}

func DefaultPalette() Palette {
	return Palette{
		Primary:       Cyan,
		Secondary:     Magenta,
		Gain:          Green,
		Loss:          Red,
		Warning:       Yellow,
		Text:          Base2,
		TextMuted:     Base01,
		BackgroundAlt: Base02,
	}
}

// Signed picks the gain or loss color for a signed amount; zero is muted.
func (p Palette) Signed(sign int) lipgloss.Color {
	switch {
	case sign > 0:
		return p.Gain
	case sign < 0:
		return p.Loss
	default:
		return p.TextMuted
	}
}
