package autopilot

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/talgya/bridge-keeper/internal/engine"
	"github.com/talgya/bridge-keeper/internal/outcome"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true).
			Underline(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Width(18)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	logStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("#3C3C3C")).
			PaddingLeft(2).
			Foreground(lipgloss.Color("#AAAAAA"))

	tierColors = map[outcome.Tier]string{
		outcome.TierHero:      "#00C800",
		outcome.TierDifficult: "#FFC800",
		outcome.TierSacrifice: "#FF6400",
		outcome.TierFlood:     "#0064C8",
	}
)

// Report renders the end-of-run summary.
func Report(snap *engine.Snapshot, res *outcome.Result, mem *CycleMemory) string {
	rows := [][2]string{
		{"Run", snap.ID},
		{"Difficulty", string(snap.Difficulty)},
		{"Bridge", fmt.Sprintf("%d/%d segments", len(snap.Segments), snap.TotalSegments)},
		{"Standing", fmt.Sprintf("%d (%s)", snap.Standing, snap.StandingLabel)},
		{"Displaced", fmt.Sprintf("%d villagers", snap.TotalDisplaced)},
		{"Salvaged", snap.Salvaged.String()},
		{"Flood timer", fmt.Sprintf("%.0fs", snap.FloodTimer)},
	}
	if len(snap.Achievements) > 0 {
		rows = append(rows, [2]string{"Achievements", strings.Join(snap.Achievements, ", ")})
	}
	if mem != nil {
		c := mem.Counts()
		rows = append(rows, [2]string{"Actions", fmt.Sprintf("%d dismantled, %d confirmed, %d spared",
			c[ActionDismantle], c[ActionConfirm], c[ActionCancel])})
	}

	lines := []string{titleStyle.Render("Bridge Keeper autopilot report"), ""}
	if res != nil {
		tier := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(tierColors[res.Tier]))
		lines = append(lines,
			tier.Render(res.TierName),
			fmt.Sprintf("%d of %d villagers saved (%.0f%%), %s path",
				res.VillagersSaved, snap.InitialVillagers, res.SurvivalRate*100, res.Category),
			"")
	}
	for _, r := range rows {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(r[0]), valueStyle.Render(r[1])))
	}
	if mem != nil {
		if recent := strings.TrimRight(mem.Format(8), "\n"); recent != "" {
			lines = append(lines, "", logStyle.Render(recent))
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
