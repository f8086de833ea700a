package workerpool

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/datengrube/context-orchestrator/internal/domain"
	"github.com/datengrube/context-orchestrator/internal/squadproto"
)

// CoordinatorConfig configures the coordinator
type CoordinatorConfig struct {
	ListenPort        int
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	AssignTimeout     time.Duration
}

type execResult struct {
	output string
	err    error
}

type pendingExec struct {
	assignment *domain.SquadAssignment
	workerID   string
	resultCh   chan execResult
}

// Coordinator routes assignments to connected workers and falls back to
// the embedded runner when no worker serves the assignment's squad.
type Coordinator struct {
	config   CoordinatorConfig
	registry *Registry
	embedded *EmbeddedRunner
	upgrader websocket.Upgrader

	server *http.Server

	pendingMu sync.Mutex
	pending   map[string]*pendingExec // assignmentID -> in-flight exec
}

// NewCoordinator creates a new coordinator
func NewCoordinator(config CoordinatorConfig, registry *Registry, embedded *EmbeddedRunner) *Coordinator {
	if config.HeartbeatInterval == 0 {
		config.HeartbeatInterval = 30 * time.Second
	}
	if config.HeartbeatTimeout == 0 {
		config.HeartbeatTimeout = 90 * time.Second // Allow missing 2 heartbeats before disconnect
	}
	if config.AssignTimeout == 0 {
		config.AssignTimeout = 5 * time.Minute
	}

	return &Coordinator{
		config:   config,
		registry: registry,
		embedded: embedded,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		pending: make(map[string]*pendingExec),
	}
}

// Registry returns the worker registry
func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// Execute runs an assignment on a connected worker serving its squad, or
// on the embedded runner when none is available. It blocks until the
// assignment finishes, the context is cancelled, or the assignment times
// out on the worker.
func (c *Coordinator) Execute(ctx context.Context, a *domain.SquadAssignment) (string, error) {
	worker := c.registry.FindReady(a.Squad)
	if worker == nil {
		return c.embedded.Execute(ctx, a)
	}

	pe := &pendingExec{
		assignment: a,
		workerID:   worker.ID,
		resultCh:   make(chan execResult, 1),
	}
	c.pendingMu.Lock()
	c.pending[a.ID] = pe
	c.pendingMu.Unlock()

	worker.DecrementSlots()
	if err := c.sendAssignment(worker, a); err != nil {
		c.removePending(a.ID)
		log.Printf("send to %s failed, using embedded runner: %v", worker.ID, err)
		return c.embedded.Execute(ctx, a)
	}

	select {
	case res := <-pe.resultCh:
		return res.output, res.err
	case <-ctx.Done():
		c.removePending(a.ID)
		c.sendCancel(worker.ID, a.ID)
		return "", ctx.Err()
	case <-time.After(c.config.AssignTimeout):
		c.removePending(a.ID)
		c.sendCancel(worker.ID, a.ID)
		return "", fmt.Errorf("assignment %s timed out on worker %s", a.ID, worker.ID)
	}
}

func (c *Coordinator) sendAssignment(w *ConnectedWorker, a *domain.SquadAssignment) error {
	data, err := squadproto.MarshalEnvelope(squadproto.TypeAssignment, squadproto.AssignmentMessage{
		AssignmentID: a.ID,
		Squad:        a.Squad,
		PhaseName:    a.PhaseName,
		TaskName:     a.SubTask.Name,
		Category:     a.SubTask.Category,
	})
	if err != nil {
		return err
	}
	return w.WriteMessage(websocket.TextMessage, data)
}

func (c *Coordinator) sendCancel(workerID, assignmentID string) {
	w := c.registry.Get(workerID)
	if w == nil {
		return
	}
	data, err := squadproto.MarshalEnvelope(squadproto.TypeCancel, squadproto.CancelMessage{
		AssignmentID: assignmentID,
	})
	if err != nil {
		return
	}
	if err := w.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("cancel to %s failed: %v", workerID, err)
	}
}

func (c *Coordinator) removePending(assignmentID string) *pendingExec {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	pe := c.pending[assignmentID]
	delete(c.pending, assignmentID)
	return pe
}

func (c *Coordinator) resolve(assignmentID, output string, err error) {
	pe := c.removePending(assignmentID)
	if pe != nil {
		pe.resultCh <- execResult{output: output, err: err}
	}
}

// requeueWorker re-runs a disconnected worker's in-flight assignments on
// the embedded runner so callers still get a result.
func (c *Coordinator) requeueWorker(workerID string) {
	c.pendingMu.Lock()
	var orphaned []*pendingExec
	for id, pe := range c.pending {
		if pe.workerID == workerID {
			orphaned = append(orphaned, pe)
			delete(c.pending, id)
		}
	}
	c.pendingMu.Unlock()

	for _, pe := range orphaned {
		go func(pe *pendingExec) {
			output, err := c.embedded.Execute(context.Background(), pe.assignment)
			pe.resultCh <- execResult{output: output, err: err}
		}(pe)
	}
}

// HandleWebSocket handles incoming WebSocket connections from workers
func (c *Coordinator) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade failed: %v", err)
		return
	}

	go c.handleWorkerConnection(conn)
}

func (c *Coordinator) handleWorkerConnection(conn *websocket.Conn) {
	var workerID string
	defer func() {
		conn.Close()
		if workerID != "" {
			c.registry.Unregister(workerID)
			c.requeueWorker(workerID)
			log.Printf("worker %s disconnected", workerID)
		}
	}()

	// Set up WebSocket-level pong handler to extend read deadline
	conn.SetReadDeadline(time.Now().Add(c.config.HeartbeatTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(c.config.HeartbeatTimeout))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("read error: %v", err)
			}
			return
		}

		// Extend read deadline on any message received
		conn.SetReadDeadline(time.Now().Add(c.config.HeartbeatTimeout))

		var env squadproto.EnvelopeRaw
		if err := json.Unmarshal(message, &env); err != nil {
			log.Printf("invalid message: %v", err)
			continue
		}

		switch env.Type {
		case squadproto.TypeRegister:
			var reg squadproto.RegisterMessage
			if err := json.Unmarshal(env.Payload, &reg); err != nil {
				log.Printf("invalid register: %v", err)
				continue
			}
			workerID = reg.WorkerID
			c.registry.Register(&ConnectedWorker{
				ID:       reg.WorkerID,
				Squads:   reg.Squads,
				MaxTasks: reg.MaxTasks,
				Slots:    reg.MaxTasks,
				Conn:     conn,
			})
			log.Printf("worker %s registered (squads=%v max_tasks=%d)", reg.WorkerID, reg.Squads, reg.MaxTasks)

		case squadproto.TypeReady:
			var ready squadproto.ReadyMessage
			if err := json.Unmarshal(env.Payload, &ready); err != nil {
				log.Printf("failed to unmarshal %s message: %v", env.Type, err)
				continue
			}
			if w := c.registry.Get(workerID); w != nil {
				w.UpdateSlots(ready.Slots)
			}

		case squadproto.TypeResult:
			var res squadproto.ResultMessage
			if err := json.Unmarshal(env.Payload, &res); err != nil {
				log.Printf("failed to unmarshal %s message: %v", env.Type, err)
				continue
			}
			c.resolve(res.AssignmentID, res.Result, nil)

		case squadproto.TypeError:
			var errMsg squadproto.ErrorMessage
			if err := json.Unmarshal(env.Payload, &errMsg); err != nil {
				log.Printf("failed to unmarshal %s message: %v", env.Type, err)
				continue
			}
			c.resolve(errMsg.AssignmentID, "", fmt.Errorf("worker %s: %s", workerID, errMsg.Message))

		case squadproto.TypePong:
			if w := c.registry.Get(workerID); w != nil {
				w.SetLastHeartbeat(time.Now())
			}
		}
	}
}

// Start starts the coordinator server
func (c *Coordinator) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", c.HandleWebSocket)
	mux.HandleFunc("/status", c.HandleStatus)

	addr := fmt.Sprintf(":%d", c.config.ListenPort)
	c.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go c.heartbeatLoop(ctx)

	log.Printf("worker pool listening on %s", addr)
	return c.server.ListenAndServe()
}

// Stop stops the coordinator server
func (c *Coordinator) Stop() error {
	if c.server != nil {
		return c.server.Close()
	}
	return nil
}

// HandleStatus returns the current status of workers and assignments
func (c *Coordinator) HandleStatus(w http.ResponseWriter, r *http.Request) {
	workers := []map[string]interface{}{}
	for _, worker := range c.registry.All() {
		maxTasks, slots, connectedAt := worker.GetStatus()
		workers = append(workers, map[string]interface{}{
			"id":              worker.ID,
			"squads":          worker.Squads,
			"max_tasks":       maxTasks,
			"active_tasks":    maxTasks - slots,
			"connected_since": connectedAt.Format(time.RFC3339),
		})
	}

	c.pendingMu.Lock()
	inFlight := len(c.pending)
	c.pendingMu.Unlock()

	status := map[string]interface{}{
		"workers":        workers,
		"in_flight":      inFlight,
		"embedded_slots": c.embedded.Pool().Available(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (c *Coordinator) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(c.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sendHeartbeats()
		}
	}
}

func (c *Coordinator) sendHeartbeats() {
	for _, w := range c.registry.All() {
		// WebSocket protocol-level ping keeps the connection alive and
		// triggers the pong handler on the worker side
		w.writeMu.Lock()
		w.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		err := w.Conn.WriteMessage(websocket.PingMessage, nil)
		w.Conn.SetWriteDeadline(time.Time{})
		w.writeMu.Unlock()

		if err != nil {
			log.Printf("ping to %s failed: %v", w.ID, err)
			w.Conn.Close()
		}
	}
}
