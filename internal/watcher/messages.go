package watcher

import (
	"fmt"
	"strings"
	"time"

	"github.com/JakeFAU/gp-agenda-watcher/internal/centraltime"
	"github.com/JakeFAU/gp-agenda-watcher/internal/document"
)

func initializedText(title string, total int, at time.Time) string {
	return fmt.Sprintf("✅ %s watcher initialized.\nTotal docs: %d\nChecked: %s",
		title, total, centraltime.Stamp(at))
}

func newDocumentsText(folder string, docs []document.Document, at time.Time) string {
	lines := make([]string, 0, len(docs))
	for _, doc := range docs {
		lines = append(lines, doc.Line())
	}
	return fmt.Sprintf("📄 **New document(s) in %s**\n%s\n\nChecked: %s",
		folder, strings.Join(lines, "\n"), centraltime.Stamp(at))
}

func heartbeatText(title string, total int, at time.Time) string {
	return fmt.Sprintf("✅ %s check OK — no changes.\nTotal docs: %d\nChecked: %s",
		title, total, centraltime.Stamp(at))
}

func dailyText(total int, at time.Time) string {
	return fmt.Sprintf("No new documents today.\nTotal docs: %d\nChecked: %s",
		total, centraltime.Stamp(at))
}

func errorText(title string, err error, at time.Time) string {
	return fmt.Sprintf("❌ %s watcher ERROR: %v\nChecked: %s",
		title, err, centraltime.FormatUTC(at))
}
