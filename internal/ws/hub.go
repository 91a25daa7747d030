package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

var (
	ErrNoPrintAgent = errors.New("no print agent connected for tenant")
	ErrQueueFull    = errors.New("print queue is full")
)

// Conn is the part of a websocket connection the hub writes to
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// PrintJob is a document sent to the print agents of one tenant
type PrintJob struct {
	ID        string          `json:"id"`
	TenantID  uuid.UUID       `json:"tenantId"`
	Kind      string          `json:"kind"`
	Reference string          `json:"reference"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Hub fans print jobs out to the agents connected for each tenant
type Hub struct {
	agents map[uuid.UUID]map[Conn]bool
	jobs   chan PrintJob
	mutex  sync.Mutex
}

func NewHub(queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Hub{
		agents: make(map[uuid.UUID]map[Conn]bool),
		jobs:   make(chan PrintJob, queueSize),
	}
}

func (h *Hub) Attach(tenantID uuid.UUID, conn Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.agents[tenantID] == nil {
		h.agents[tenantID] = make(map[Conn]bool)
	}
	h.agents[tenantID][conn] = true
	log.Printf("Print agent connected for tenant %s", tenantID)
}

func (h *Hub) Detach(tenantID uuid.UUID, conn Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.remove(tenantID, conn)
}

// AgentCount reports how many agents are connected for a tenant
func (h *Hub) AgentCount(tenantID uuid.UUID) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.agents[tenantID])
}

// Enqueue queues a job for delivery and returns its id. It never blocks.
func (h *Hub) Enqueue(ctx context.Context, job PrintJob) (string, error) {
	if h.AgentCount(job.TenantID) == 0 {
		return "", ErrNoPrintAgent
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	select {
	case h.jobs <- job:
		return job.ID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	default:
		return "", ErrQueueFull
	}
}

// Run delivers queued jobs until ctx is canceled
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case job := <-h.jobs:
			h.deliver(job)
		}
	}
}

func (h *Hub) deliver(job PrintJob) {
	message, err := json.Marshal(job)
	if err != nil {
		log.Printf("Failed to encode print job %s: %v", job.ID, err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for conn := range h.agents[job.TenantID] {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.remove(job.TenantID, conn)
		}
	}
}

func (h *Hub) remove(tenantID uuid.UUID, conn Conn) {
	conns, ok := h.agents[tenantID]
	if !ok {
		return
	}
	if _, ok := conns[conn]; ok {
		delete(conns, conn)
		conn.Close()
	}
	if len(conns) == 0 {
		delete(h.agents, tenantID)
	}
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for tenantID, conns := range h.agents {
		for conn := range conns {
			conn.Close()
		}
		delete(h.agents, tenantID)
	}
}
