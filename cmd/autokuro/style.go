package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/nao1215/autokuro/internal/config"
	securelog "github.com/nao1215/autokuro/internal/log"
	"github.com/nao1215/autokuro/internal/report"
)

// Terminal styles. lipgloss drops the colors when output is not a terminal.
var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	dimStyle  = lipgloss.NewStyle().Faint(true)

	bannerStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("196")).Padding(1, 6)
	bannerTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Bold(true)
	labelStyle       = lipgloss.NewStyle().Bold(true).Width(8)
)

// onOff renders a boolean option.
func onOff(b bool) string {
	if b {
		return okStyle.Render("ON")
	}
	return dimStyle.Render("OFF")
}

// bannerText returns the start panel content for one target. Secrets in
// the proxy URL are masked.
func bannerText(cfg *config.Config, target string, notifyOn bool) string {
	proxy := onOff(cfg.Proxy != "")
	if cfg.Proxy != "" {
		proxy += " " + dimStyle.Render(securelog.Scrub(cfg.Proxy))
	}
	rows := []string{
		bannerTitleStyle.Render("🏴 AutoKuro 🦊"),
		"",
		labelStyle.Render("Target:") + " " + target,
		labelStyle.Render("Mode:") + " " + report.ModeTitle(cfg.Mode),
		labelStyle.Render("Proxy:") + " " + proxy,
		labelStyle.Render("Auth:") + " " + onOff(cfg.Cookie != ""),
		labelStyle.Render("Notify:") + " " + onOff(notifyOn),
	}
	return strings.Join(rows, "\n")
}

// printBanner writes the start panel for one target.
func printBanner(w io.Writer, cfg *config.Config, target string, notifyOn bool) {
	fmt.Fprintln(w, bannerStyle.Render(bannerText(cfg, target, notifyOn)))
}
