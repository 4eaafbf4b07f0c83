package cli

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/sparkgen/spark/pkg/logger"
)

var (
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#3C3C3C"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4672"))
)

// ConsoleStepPublisher prints a start/success/fail indicator per step.
// Steps may complete concurrently, so prints are serialized.
type ConsoleStepPublisher struct {
	mu     sync.Mutex
	logger logger.Logger
}

func NewConsoleStepPublisher(l logger.Logger) *ConsoleStepPublisher {
	if l == nil {
		l = logger.NewNullLogger()
	}
	return &ConsoleStepPublisher{logger: l}
}

func (p *ConsoleStepPublisher) StepStarted(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Println(runningStyle.Render("… " + name))
	p.logger.Debug(fmt.Sprintf("Step started: %s", name))
}

func (p *ConsoleStepPublisher) StepCompleted(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Println(successStyle.Render("✓ " + name))
	p.logger.Debug(fmt.Sprintf("Step completed: %s", name))
}

func (p *ConsoleStepPublisher) StepFailed(name string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Println(failureStyle.Render(fmt.Sprintf("✗ %s: %v", name, err)))
	p.logger.Error(fmt.Sprintf("Step failed: %s: %v", name, err))
}
