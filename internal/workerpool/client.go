package workerpool

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/datengrube/context-orchestrator/internal/domain"
	"github.com/datengrube/context-orchestrator/internal/squadproto"
)

// Backoff constants for reconnection
const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 60 * time.Second
	backoffFactor  = 2
)

// pingWait is how long we wait for a ping from the coordinator before timing out
const pingWait = 90 * time.Second

// writeWait is time allowed to write a control message
const writeWait = 10 * time.Second

func calculateBackoff(attempt int) time.Duration {
	delay := initialBackoff
	for i := 0; i < attempt; i++ {
		delay *= backoffFactor
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// WorkerConfig configures the worker client
type WorkerConfig struct {
	ServerURL string
	WorkerID  string
	Squads    []string
	MaxTasks  int
	Run       TaskFunc // Optional; defaults to the embedded acknowledgment
}

// Validate checks the config is valid
func (c *WorkerConfig) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required")
	}
	if c.WorkerID == "" {
		return fmt.Errorf("worker_id is required")
	}
	if c.MaxTasks <= 0 {
		return fmt.Errorf("max_tasks must be positive")
	}
	return nil
}

// Worker is a squad agent that connects to a coordinator and runs
// assignments for the squads it serves.
type Worker struct {
	config WorkerConfig
	pool   *SlotPool
	run    TaskFunc
	conn   *websocket.Conn
	mu     sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc

	// Assignment tracking for cancellation
	tasksMu sync.Mutex
	tasks   map[string]context.CancelFunc
}

// NewWorker creates a new worker client
func NewWorker(config WorkerConfig) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	run := config.Run
	if run == nil {
		run = defaultTask
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		config: config,
		pool:   NewSlotPool(config.MaxTasks),
		run:    run,
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(map[string]context.CancelFunc),
	}, nil
}

// Connect establishes the connection to the coordinator and registers
func (w *Worker) Connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(w.config.ServerURL, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(pingWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(pingWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()

	return w.send(squadproto.TypeRegister, squadproto.RegisterMessage{
		WorkerID: w.config.WorkerID,
		Squads:   w.config.Squads,
		MaxTasks: w.config.MaxTasks,
	})
}

// Run starts the worker message loop. It returns on disconnect or Stop.
func (w *Worker) Run() error {
	if err := w.sendReady(); err != nil {
		return err
	}

	for {
		select {
		case <-w.ctx.Done():
			return nil
		default:
		}

		_, message, err := w.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read failed: %w", err)
		}

		w.conn.SetReadDeadline(time.Now().Add(pingWait))

		var env squadproto.EnvelopeRaw
		if err := json.Unmarshal(message, &env); err != nil {
			log.Printf("invalid message: %v", err)
			continue
		}

		switch env.Type {
		case squadproto.TypeAssignment:
			var assign squadproto.AssignmentMessage
			if err := json.Unmarshal(env.Payload, &assign); err != nil {
				log.Printf("invalid assignment message: %v", err)
				continue
			}
			go w.handleAssignment(assign)

		case squadproto.TypePing:
			w.send(squadproto.TypePong, nil)

		case squadproto.TypeCancel:
			var cancel squadproto.CancelMessage
			if err := json.Unmarshal(env.Payload, &cancel); err != nil {
				log.Printf("invalid cancel message: %v", err)
				continue
			}
			log.Printf("cancelling assignment %s", cancel.AssignmentID)
			w.CancelAssignment(cancel.AssignmentID)
		}
	}
}

func (w *Worker) handleAssignment(msg squadproto.AssignmentMessage) {
	if !w.pool.Acquire() {
		w.send(squadproto.TypeError, squadproto.ErrorMessage{
			AssignmentID: msg.AssignmentID,
			Message:      "no slots available",
		})
		return
	}
	defer func() {
		w.pool.Release()
		w.untrack(msg.AssignmentID)
		w.sendReady()
	}()

	timeout := time.Duration(msg.Timeout) * time.Second
	if timeout == 0 {
		timeout = 5 * time.Minute
	}

	ctx, cancel := context.WithTimeout(w.ctx, timeout)
	defer cancel()
	w.track(msg.AssignmentID, cancel)

	assignment := domain.NewAssignment(msg.AssignmentID, msg.Squad, 0, msg.PhaseName, domain.SubTask{
		Name:     msg.TaskName,
		Category: msg.Category,
	})
	assignment.Accept(time.Now())

	start := time.Now()
	output, err := w.run(ctx, assignment)
	if err != nil {
		w.send(squadproto.TypeError, squadproto.ErrorMessage{
			AssignmentID: msg.AssignmentID,
			Message:      err.Error(),
		})
		return
	}

	w.send(squadproto.TypeResult, squadproto.ResultMessage{
		AssignmentID: msg.AssignmentID,
		Result:       output,
		DurationMs:   time.Since(start).Milliseconds(),
	})
}

func (w *Worker) sendReady() error {
	return w.send(squadproto.TypeReady, squadproto.ReadyMessage{
		Slots: w.pool.Available(),
	})
}

func (w *Worker) send(msgType string, payload interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := squadproto.MarshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.cancel()
	w.mu.Lock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.mu.Unlock()
}

// RunWithReconnect runs the worker with automatic reconnection
func (w *Worker) RunWithReconnect() error {
	attempt := 0

	for {
		select {
		case <-w.ctx.Done():
			return nil
		default:
		}

		if err := w.Connect(); err != nil {
			delay := calculateBackoff(attempt)
			log.Printf("connection failed: %v, retrying in %v", err, delay)
			attempt++

			select {
			case <-w.ctx.Done():
				return nil
			case <-time.After(delay):
				continue
			}
		}

		attempt = 0
		log.Printf("connected to coordinator")

		err := w.Run()

		w.mu.Lock()
		if w.conn != nil {
			w.conn.Close()
			w.conn = nil
		}
		w.mu.Unlock()

		if err != nil {
			log.Printf("disconnected: %v", err)
		}

		select {
		case <-w.ctx.Done():
			return nil
		default:
		}
	}
}

func (w *Worker) track(assignmentID string, cancel context.CancelFunc) {
	w.tasksMu.Lock()
	defer w.tasksMu.Unlock()
	w.tasks[assignmentID] = cancel
}

func (w *Worker) untrack(assignmentID string) {
	w.tasksMu.Lock()
	defer w.tasksMu.Unlock()
	delete(w.tasks, assignmentID)
}

// HasAssignment checks if an assignment is currently tracked
func (w *Worker) HasAssignment(assignmentID string) bool {
	w.tasksMu.Lock()
	defer w.tasksMu.Unlock()
	_, ok := w.tasks[assignmentID]
	return ok
}

// CancelAssignment cancels a running assignment
func (w *Worker) CancelAssignment(assignmentID string) {
	w.tasksMu.Lock()
	cancel, ok := w.tasks[assignmentID]
	if ok {
		delete(w.tasks, assignmentID)
	}
	w.tasksMu.Unlock()

	if ok && cancel != nil {
		cancel()
	}
}
