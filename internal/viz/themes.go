package viz

import "github.com/charmbracelet/lipgloss"

// Theme colors transcript and browser output.
type Theme struct {
	Name      string
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Formula   lipgloss.Color
	Text      lipgloss.Color
	Muted     lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
}

var (
	ThemeCyberpunk = Theme{
		Name:      "cyberpunk",
		Primary:   lipgloss.Color("#ff00ff"),
		Secondary: lipgloss.Color("#00ffff"),
		Formula:   lipgloss.Color("#00ccff"),
		Text:      lipgloss.Color("#ffffff"),
		Muted:     lipgloss.Color("#666688"),
		Success:   lipgloss.Color("#00ff88"),
		Warning:   lipgloss.Color("#ffaa00"),
		Error:     lipgloss.Color("#ff4444"),
	}

	ThemeMinimal = Theme{
		Name:      "minimal",
		Primary:   lipgloss.Color("#ffffff"),
		Secondary: lipgloss.Color("#cccccc"),
		Formula:   lipgloss.Color("#0088ff"),
		Text:      lipgloss.Color("#ffffff"),
		Muted:     lipgloss.Color("#888888"),
		Success:   lipgloss.Color("#00ff00"),
		Warning:   lipgloss.Color("#ffaa00"),
		Error:     lipgloss.Color("#ff0000"),
	}

	ThemeOcean = Theme{
		Name:      "ocean",
		Primary:   lipgloss.Color("#0077be"),
		Secondary: lipgloss.Color("#00a8cc"),
		Formula:   lipgloss.Color("#ffd700"),
		Text:      lipgloss.Color("#e0f0ff"),
		Muted:     lipgloss.Color("#4488aa"),
		Success:   lipgloss.Color("#00ff88"),
		Warning:   lipgloss.Color("#ffcc00"),
		Error:     lipgloss.Color("#ff4444"),
	}

	CurrentTheme = ThemeCyberpunk

	Themes = []Theme{
		ThemeCyberpunk,
		ThemeMinimal,
		ThemeOcean,
	}
)

// GetTheme returns a theme by name, falling back to cyberpunk.
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return ThemeCyberpunk
}

func SetTheme(name string) {
	CurrentTheme = GetTheme(name)
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}
