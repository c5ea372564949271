package internal

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// pre styled colors, all from lipgloss
var (
	appTitleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("45")).Padding(0, 1)
	subtitleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("110")).MarginTop(1)
	headerStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("45")).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
	statusStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("109")).MarginTop(1)
	connectedStyle    = statusStyle.Copy().Foreground(lipgloss.Color("42")).Bold(true)
	connectingStyle   = statusStyle.Copy().Foreground(lipgloss.Color("178")).Italic(true)
	errorStyle        = statusStyle.Copy().Foreground(lipgloss.Color("196")).Bold(true)
	radarBoxStyle     = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("60")).Padding(1, 2).MarginTop(1)
	noticeBoxStyle    = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("95")).Padding(0, 2).MarginTop(1)
	inputBoxStyle     = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1).MarginTop(1)
	hintStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).MarginTop(1)
	systemNoticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true)
	nearbyNameStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213"))
	nearbyMetaStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	distanceStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	emptyRadarStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	dividerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("237")).Render(" ┃ ")
)

func (model *TUIModel) View() string {
	switch model.mode {
	case modeEmailPrompt:
		return model.renderPrompt("Sign in", "Enter your account email and press Enter.")
	case modePasswordPrompt:
		return model.renderPrompt("Sign in", "Enter your password and press Enter.")
	default:
		return model.renderRadarView()
	}
}

func (model *TUIModel) renderPrompt(title, hint string) string {
	header := appTitleStyle.Render(title)
	hintText := hintStyle.Render(hint)

	viewSections := []string{header, hintText}
	if notices := model.renderNotices(); notices != "" {
		viewSections = append(viewSections, notices)
	}
	viewSections = append(viewSections, inputBoxStyle.Render(model.textInput.View()))

	return lipgloss.JoinVertical(lipgloss.Left, viewSections...)
}

func (model *TUIModel) renderRadarView() string {
	headerSegments := []string{"Nearcast"}
	if model.username != "" {
		headerSegments = append(headerSegments, fmt.Sprintf("User %s", model.username))
	}
	headerSegments = append(headerSegments, fmt.Sprintf("Server %s", model.serverURL))
	header := headerStyle.Render(strings.Join(headerSegments, dividerStyle))

	var statusLine string
	switch {
	case model.connectionError != nil:
		statusLine = errorStyle.Render("Connection error: " + model.connectionError.Error())
	case model.isConnected && model.active:
		statusLine = connectedStyle.Render("Broadcasting")
	case model.isConnected:
		statusLine = connectedStyle.Render("Connected (hidden)")
	default:
		statusLine = connectingStyle.Render("Connecting…")
	}

	position := subtitleStyle.Render(fmt.Sprintf("Position %.5f, %.5f", model.latitude, model.longitude))

	var radarLines []string
	if !model.active {
		radarLines = append(radarLines, emptyRadarStyle.Render("You are hidden. Press a to broadcast your location."))
	} else if len(model.nearby) == 0 {
		radarLines = append(radarLines, emptyRadarStyle.Render("Nobody nearby right now."))
	} else {
		for _, user := range model.nearby {
			radarLines = append(radarLines, model.renderNearbyUser(user))
		}
	}
	radarView := radarBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, radarLines...))

	sections := []string{header, statusLine, position, radarView}
	if notices := model.renderNotices(); notices != "" {
		sections = append(sections, notices)
	}
	sections = append(sections, hintStyle.Render("arrows move • a toggle visibility • q quit"))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderNearbyUser renders one radar entry with the distance from our own
// position and whatever profile fields the user has filled in.
func (model *TUIModel) renderNearbyUser(user NearbyUser) string {
	meters := HaversineMeters(model.latitude, model.longitude, user.Latitude, user.Longitude)
	name := nearbyNameStyle.Render(user.Username)
	distance := distanceStyle.Render(fmt.Sprintf("%.0fm", meters))

	var metaParts []string
	if user.Pronouns != nil && *user.Pronouns != "" {
		metaParts = append(metaParts, *user.Pronouns)
	}
	if user.Headline != nil && *user.Headline != "" {
		metaParts = append(metaParts, *user.Headline)
	}

	line := lipgloss.JoinHorizontal(lipgloss.Left, "● ", name, "  ", distance)
	if len(metaParts) > 0 {
		line = lipgloss.JoinHorizontal(lipgloss.Left, line, "  ", nearbyMetaStyle.Render(strings.Join(metaParts, " · ")))
	}
	return line
}

func (model *TUIModel) renderNotices() string {
	if len(model.notices) == 0 {
		return ""
	}
	lines := make([]string, 0, len(model.notices))
	for _, notice := range model.notices {
		lines = append(lines, systemNoticeStyle.Render(notice))
	}
	return noticeBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
