// Command monitor is a terminal dashboard polling a running reelgrab
// server for health, runtime stats and recent downloads.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

type healthStatus struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Detail    string `json:"detail"`
}

type systemStats struct {
	UptimeHuman    string  `json:"uptime_human"`
	MemAllocMB     int64   `json:"mem_alloc_mb"`
	MemSysMB       int64   `json:"mem_sys_mb"`
	NumGoroutines  int     `json:"num_goroutines"`
	NumCPU         int     `json:"num_cpu"`
	DiskFreeBytes  int64   `json:"disk_free_bytes"`
	DiskTotalBytes int64   `json:"disk_total_bytes"`
	DiskUsedPct    float64 `json:"disk_used_pct"`
	MediaPath      string  `json:"media_path"`
	VideoCount     int     `json:"video_count"`
	VideoBytes     int64   `json:"video_bytes"`
}

type historyEntry struct {
	URL       string    `json:"url"`
	Platform  string    `json:"platform"`
	Author    string    `json:"author"`
	Status    string    `json:"status"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

type historyPage struct {
	Downloads []historyEntry `json:"downloads"`
}

type monitor struct {
	app     *tview.Application
	client  *http.Client
	baseURL string

	healthView  *tview.TextView
	statsView   *tview.TextView
	historyView *tview.Table
}

func main() {
	baseURL := flag.String("url", "http://localhost:8000", "Server base URL")
	refresh := flag.Duration("refresh", 2*time.Second, "Poll interval")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("reelgrab-monitor %s (built %s)\n", Version, BuildTime)
		return
	}

	m := &monitor{
		app:     tview.NewApplication(),
		client:  &http.Client{Timeout: 5 * time.Second},
		baseURL: strings.TrimRight(*baseURL, "/"),
	}

	m.healthView = tview.NewTextView().SetDynamicColors(true)
	m.healthView.SetBorder(true).SetTitle(" Health ")

	m.statsView = tview.NewTextView().SetDynamicColors(true)
	m.statsView.SetBorder(true).SetTitle(" Runtime ")

	m.historyView = tview.NewTable().SetFixed(1, 0)
	m.historyView.SetBorder(true).SetTitle(" Recent Downloads ")

	top := tview.NewFlex().
		AddItem(m.healthView, 0, 1, false).
		AddItem(m.statsView, 0, 2, false)

	footer := tview.NewTextView().
		SetDynamicColors(true).
		SetText(fmt.Sprintf("[gray]watching %s, refresh %s, press q to quit", m.baseURL, *refresh))

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(top, 9, 0, false).
		AddItem(m.historyView, 0, 1, false).
		AddItem(footer, 1, 0, false)

	m.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Rune() == 'q' || event.Key() == tcell.KeyEscape {
			m.app.Stop()
			return nil
		}
		return event
	})

	go m.poll(*refresh)

	if err := m.app.SetRoot(layout, true).Run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// poll refreshes all panels on a fixed interval until the app stops.
func (m *monitor) poll(interval time.Duration) {
	for {
		m.refreshHealth()
		m.refreshStats()
		m.refreshHistory()
		time.Sleep(interval)
	}
}

func (m *monitor) refreshHealth() {
	var live, ready healthStatus
	liveErr := m.fetchJSON("/health", &live)
	readyErr := m.fetchJSON("/ready", &ready)

	m.app.QueueUpdateDraw(func() {
		m.healthView.Clear()
		if liveErr != nil {
			fmt.Fprintf(m.healthView, "[red]server unreachable[-]\n%v\n", liveErr)
			return
		}
		fmt.Fprintf(m.healthView, "live:  %s\n", colorStatus(live.Status))
		if readyErr != nil {
			fmt.Fprintf(m.healthView, "ready: [red]error[-]\n")
			return
		}
		fmt.Fprintf(m.healthView, "ready: %s\n", colorStatus(ready.Status))
		if ready.Detail != "" {
			fmt.Fprintf(m.healthView, "[yellow]%s[-]\n", ready.Detail)
		}
	})
}

func (m *monitor) refreshStats() {
	var stats systemStats
	err := m.fetchJSON("/api/stats", &stats)

	m.app.QueueUpdateDraw(func() {
		m.statsView.Clear()
		if err != nil {
			fmt.Fprintf(m.statsView, "[red]stats unavailable[-]\n")
			return
		}
		fmt.Fprintf(m.statsView, "uptime:     %s\n", stats.UptimeHuman)
		fmt.Fprintf(m.statsView, "memory:     %d MB alloc / %d MB sys\n", stats.MemAllocMB, stats.MemSysMB)
		fmt.Fprintf(m.statsView, "goroutines: %d on %d CPUs\n", stats.NumGoroutines, stats.NumCPU)
		fmt.Fprintf(m.statsView, "disk:       %.1f%% used, %s free\n",
			stats.DiskUsedPct, formatBytes(stats.DiskFreeBytes))
		fmt.Fprintf(m.statsView, "archive:    %d videos, %s in %s\n",
			stats.VideoCount, formatBytes(stats.VideoBytes), stats.MediaPath)
	})
}

func (m *monitor) refreshHistory() {
	var page historyPage
	err := m.fetchJSON("/api/downloads?limit=30", &page)

	m.app.QueueUpdateDraw(func() {
		m.historyView.Clear()
		for col, title := range []string{"Time", "Platform", "Author", "Status", "URL"} {
			m.historyView.SetCell(0, col,
				tview.NewTableCell(title).SetAttributes(tcell.AttrBold).SetSelectable(false))
		}
		if err != nil {
			m.historyView.SetCell(1, 0, tview.NewTableCell("history unavailable").SetTextColor(tcell.ColorGray))
			return
		}
		for i, e := range page.Downloads {
			row := i + 1
			statusCell := tview.NewTableCell(e.Status)
			if e.Status == "failed" {
				statusCell.SetTextColor(tcell.ColorRed)
			} else {
				statusCell.SetTextColor(tcell.ColorGreen)
			}
			m.historyView.SetCell(row, 0, tview.NewTableCell(e.CreatedAt.Local().Format("15:04:05")))
			m.historyView.SetCell(row, 1, tview.NewTableCell(e.Platform))
			m.historyView.SetCell(row, 2, tview.NewTableCell(e.Author))
			m.historyView.SetCell(row, 3, statusCell)
			m.historyView.SetCell(row, 4, tview.NewTableCell(e.URL).SetExpansion(1))
		}
	})
}

func colorStatus(s string) string {
	if s == "ok" {
		return "[green]ok[-]"
	}
	return fmt.Sprintf("[red]%s[-]", s)
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

func (m *monitor) fetchJSON(path string, out interface{}) error {
	resp, err := m.client.Get(m.baseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}
