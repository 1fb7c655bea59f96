package tui

import (
	"sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/events"
)

// adapterBuffer bounds both the bus channel and the message channel.
const adapterBuffer = 100

// EventBusAdapter bridges bus events to Bubbletea messages. The bus side is
// a drop-oldest channel subscription, so a slow UI never blocks publishers.
type EventBusAdapter struct {
	bus     *events.Bus
	sub     events.SubscriptionID
	eventCh <-chan events.Event
	msgCh   chan tea.Msg
	closeCh chan struct{}
	dropped atomic.Int64

	mu     sync.Mutex
	closed bool
}

// NewEventBusAdapter subscribes to the state events the UI renders.
func NewEventBusAdapter(bus *events.Bus) *EventBusAdapter {
	ch, id := bus.Channel(adapterBuffer,
		events.TypeWorkflowUpdated,
		events.TypeWorkflowRemoved,
		events.TypeLogAppended,
		events.TypeRefreshFailed,
		events.TypeHandlerError,
	)
	a := &EventBusAdapter{
		bus:     bus,
		sub:     id,
		eventCh: ch,
		msgCh:   make(chan tea.Msg, adapterBuffer),
		closeCh: make(chan struct{}),
	}

	go a.run()
	return a
}

// MsgChannel returns the channel for Bubbletea to read from. It is closed
// after Close or when the bus shuts down.
func (a *EventBusAdapter) MsgChannel() <-chan tea.Msg {
	return a.msgCh
}

// DroppedCount returns messages lost on either side of the adapter.
func (a *EventBusAdapter) DroppedCount() int64 {
	return a.dropped.Load() + a.bus.DroppedCount()
}

// Close unsubscribes from the bus and stops the adapter.
func (a *EventBusAdapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}
	a.closed = true
	close(a.closeCh)
	a.bus.Unsubscribe(a.sub)
}

func (a *EventBusAdapter) run() {
	defer close(a.msgCh)
	for {
		select {
		case <-a.closeCh:
			return
		case event, ok := <-a.eventCh:
			if !ok {
				return
			}
			msg := eventToMsg(event)
			if msg == nil {
				continue
			}
			select {
			case a.msgCh <- msg:
			default:
				a.dropped.Add(1)
			}
		}
	}
}

// eventToMsg converts an events.Event to a tea.Msg.
func eventToMsg(event events.Event) tea.Msg {
	switch e := event.(type) {
	case events.WorkflowUpdatedEvent:
		return WorkflowChangedMsg{
			WorkflowID:   e.WorkflowID,
			Generation:   e.Generation,
			Status:       e.Status,
			ChangedTasks: e.ChangedTasks,
		}
	case events.WorkflowRemovedEvent:
		return WorkflowRemovedMsg{WorkflowID: e.WorkflowID}
	case events.LogAppendedEvent:
		return LogAppendedMsg{Path: e.Path, Count: e.Count}
	case events.RefreshFailedEvent:
		return RefreshFailedMsg{WorkflowID: e.WorkflowID, Error: e.Error}
	case events.HandlerErrorEvent:
		return HandlerErrorMsg{EventType: e.FailedType, Error: e.Error}
	default:
		return nil
	}
}

// waitForEvent blocks for the next adapter message.
func waitForEvent(a *EventBusAdapter) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-a.msgCh
		if !ok {
			return adapterClosedMsg{}
		}
		return msg
	}
}
