package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/rivo/tview"
)

// LogLevel is the severity of a panel message.
type LogLevel string

const (
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

// LogMessage is one panel entry.
type LogMessage struct {
	Time    time.Time
	Level   LogLevel
	Message string
}

// LogPanel keeps the most recent operator messages on screen.
type LogPanel struct {
	textView    *tview.TextView
	messages    []LogMessage
	maxMessages int
	mu          sync.Mutex
}

// NewLogPanel creates a panel holding at most maxMessages entries.
func NewLogPanel(maxMessages int) *LogPanel {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetMaxLines(maxMessages)
	tv.SetBorder(true).SetTitle(" Log ")

	return &LogPanel{
		textView:    tv,
		messages:    make([]LogMessage, 0, maxMessages),
		maxMessages: maxMessages,
	}
}

// View returns the tview component.
func (lp *LogPanel) View() tview.Primitive {
	return lp.textView
}

// Add appends a message and redraws the panel.
func (lp *LogPanel) Add(level LogLevel, format string, args ...interface{}) {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	lp.messages = append(lp.messages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: fmt.Sprintf(format, args...),
	})
	if len(lp.messages) > lp.maxMessages {
		lp.messages = lp.messages[len(lp.messages)-lp.maxMessages:]
	}

	lp.textView.Clear()
	for _, msg := range lp.messages {
		fmt.Fprint(lp.textView, formatLogLine(msg))
	}
	lp.textView.ScrollToEnd()
}

// Messages returns a copy of the retained messages.
func (lp *LogPanel) Messages() []LogMessage {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return append([]LogMessage(nil), lp.messages...)
}

func formatLogLine(msg LogMessage) string {
	return fmt.Sprintf("[gray]%s[-] [%s]%-5s[-] %s\n",
		msg.Time.Format("15:04:05"), levelColor(msg.Level), msg.Level, tview.Escape(msg.Message))
}

func levelColor(level LogLevel) string {
	switch level {
	case LogLevelWarn:
		return "yellow"
	case LogLevelError:
		return "red"
	default:
		return "white"
	}
}
