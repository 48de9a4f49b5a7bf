package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/lerobot/pkg/control"
	"github.com/gwillem/lerobot/pkg/events"
	"github.com/gwillem/lerobot/pkg/robot"
	"github.com/gwillem/lerobot/pkg/tensor"
)

type TeleoperateCommand struct {
	Hz         int      `long:"hz" default:"60" description:"Control loop frequency"`
	Duration   float64  `long:"duration" description:"Stop after this many seconds (0 = until quit)"`
	FootSwitch []string `long:"foot-switch" description:"Pedal spec event:device[:toggle], repeatable"`
}

const (
	headerHeight = 2 // title + blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

// Motor colors - distinct colors for each motor
var motorColors = map[robot.MotorName]string{
	robot.ShoulderPan:  "196", // red
	robot.ShoulderLift: "208", // orange
	robot.ElbowFlex:    "226", // yellow
	robot.WristFlex:    "46",  // green
	robot.WristRoll:    "51",  // cyan
	robot.Gripper:      "201", // magenta
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// chartSink receives the loop's telemetry and republishes complete position
// snapshots to the TUI. Implements control.Telemetry.
type chartSink struct {
	states chan map[robot.MotorName]float64

	mu      sync.Mutex
	pending map[robot.MotorName]float64
}

func newChartSink() *chartSink {
	return &chartSink{
		states:  make(chan map[robot.MotorName]float64, 1),
		pending: make(map[robot.MotorName]float64),
	}
}

// Scalar collects sent_action_<i> samples; a full motor set is pushed as
// one snapshot, replacing any unread one.
func (s *chartSink) Scalar(name string, value float64) {
	idx, ok := actionIndex(name)
	if !ok {
		return
	}
	motors := robot.AllMotors()
	if idx >= len(motors) {
		return
	}

	s.mu.Lock()
	s.pending[motors[idx]] = value
	complete := len(s.pending) == len(motors)
	var snapshot map[robot.MotorName]float64
	if complete {
		snapshot = s.pending
		s.pending = make(map[robot.MotorName]float64, len(motors))
	}
	s.mu.Unlock()

	if !complete {
		return
	}
	select {
	case s.states <- snapshot:
	default:
		// Drop unread snapshot, replace with the new one
		select {
		case <-s.states:
		default:
		}
		s.states <- snapshot
	}
}

func (s *chartSink) Image(string, *tensor.Tensor) {}

func actionIndex(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, "sent_"+robot.ActionKey+"_")
	if !ok {
		return 0, false
	}
	idx, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return idx, true
}

type teleopModel struct {
	sink          *chartSink
	logs          chan string
	hz            int
	cancel        context.CancelFunc
	chart         *streamlinechart.Model
	width         int // terminal width
	height        int // terminal height
	logLines      []string
	quitting      bool
	lastPositions map[robot.MotorName]float64
}

func (m *teleopModel) addLog(msg string) {
	m.logLines = append(m.logLines, msg)
	if len(m.logLines) > maxLogs {
		m.logLines = m.logLines[len(m.logLines)-maxLogs:]
	}
}

// hasMovement checks if any motor position has changed from the last state
func (m *teleopModel) hasMovement(positions map[robot.MotorName]float64) bool {
	if m.lastPositions == nil {
		return true // first reading, consider it movement
	}
	for name, pos := range positions {
		if lastPos, ok := m.lastPositions[name]; !ok || pos != lastPos {
			return true
		}
	}
	return false
}

// Messages from the control loop
type stateMsg map[robot.MotorName]float64
type logMsg string

func waitForState(sink *chartSink) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-sink.states)
	}
}

func waitForLog(logs chan string) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-logs)
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *teleopModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20 // default size before we know terminal size
	}
	width = m.width - borderSize - 2
	if width < 40 {
		width = 40
	}
	height = m.height - headerHeight - legendHeight - footerHeight - borderSize
	if height < 10 {
		height = 10
	}
	return width, height
}

func (m *teleopModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func initialTeleopModel(sink *chartSink, logs chan string, hz int, cancel context.CancelFunc) teleopModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(-100, 100),
	)

	// Set up data set styles for each motor
	for _, name := range robot.AllMotors() {
		color := motorColors[name]
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(color))
		chart.SetDataSetStyles(string(name), runes.ThinLineStyle, style)
	}

	return teleopModel{
		sink:   sink,
		logs:   logs,
		hz:     hz,
		cancel: cancel,
		chart:  &chart,
	}
}

func (m teleopModel) Init() tea.Cmd {
	// Start listening for state and log updates
	return tea.Batch(
		waitForState(m.sink),
		waitForLog(m.logs),
	)
}

func (m teleopModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			m.cancel()
			return m, tea.Quit
		}

	case stateMsg:
		positions := map[robot.MotorName]float64(msg)
		// Only update chart if there's movement (freeze when idle)
		if m.hasMovement(positions) {
			for name, pos := range positions {
				m.chart.PushDataSet(string(name), pos)
			}
			m.chart.DrawAll()
			m.lastPositions = positions
		}
		return m, waitForState(m.sink)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.logs)
	}

	return m, nil
}

func (m teleopModel) View() string {
	if m.quitting {
		return "Teleoperation stopped.\n"
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("LeRobot Teleoperate"))
	sb.WriteString(fmt.Sprintf(" - %d Hz", m.hz))
	if m.width > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%dx%d]", m.width, m.height)))
	}
	sb.WriteString("\n\n")

	// Chart
	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	// Legend
	sb.WriteString(renderLegend())
	sb.WriteString("\n")

	// Log box
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(m.width - 4).
		Foreground(lipgloss.Color("9")) // bright red

	var logLines string
	if len(m.logLines) == 0 {
		logLines = statusStyle.Render("Press 'q' to quit")
	} else {
		logLines = strings.Join(m.logLines, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func renderLegend() string {
	var items []string
	for _, name := range robot.AllMotors() {
		color := motorColors[name]
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true)
		item := colorStyle.Render("━━") + " " + string(name)
		items = append(items, item)
	}
	return strings.Join(items, "  ")
}

func (c *TeleoperateCommand) Execute(args []string) error {
	manipulator, _ := loadManipulator()
	defer manipulator.Disconnect()

	logCh := make(chan string, 10)
	logger := slog.New(slog.NewTextHandler(chanWriter{logCh}, nil))

	bus := events.NewDefault(logger)
	defer bus.Stop()
	if err := attachFootSwitches(bus, c.FootSwitch, logger); err != nil {
		log.Fatalf("Failed to attach foot switch: %v", err)
	}

	sink := newChartSink()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Run control loop in background; the TUI owns the terminal.
	go func() {
		err := control.Run(ctx, manipulator, control.Options{
			ControlTime: time.Duration(c.Duration * float64(time.Second)),
			FPS:         c.Hz,
			Teleoperate: true,
			DisplayData: true,
			Events:      bus,
			Telemetry:   sink,
			Logger:      logger,
		})
		if err != nil && err != context.Canceled {
			logger.Error("control loop stopped", "err", err)
		}
	}()

	p := tea.NewProgram(initialTeleopModel(sink, logCh, c.Hz, cancel), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("Error running program: %v", err)
	}

	return nil
}
