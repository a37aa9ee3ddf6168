package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"github.com/langchou/carshare/internal/models"
)

// 行程生命周期状态
const (
	StatePendingStart = "pending_start" // 已发出开始命令，等待后端确认
	StateActive       = "active"
	StateEnded        = "ended"
	StateFailed       = "failed" // 开始命令被拒绝
)

// 事件常量
const (
	EventConfirmStart = "confirm_start"
	EventFailStart    = "fail_start"
	EventStop         = "stop"
)

// ErrSessionInProgress 用户已有待确认或进行中的行程
var ErrSessionInProgress = errors.New("session already pending or active")

// SessionState 用户行程状态快照
type SessionState struct {
	UserID       string          `json:"user_id"`
	CurrentState string          `json:"state"`
	Since        time.Time       `json:"since"`
	CarID        string          `json:"car_id,omitempty"`
	SessionID    string          `json:"session_id,omitempty"`
	Session      *models.Session `json:"session,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// Machine 单个行程的状态机
type Machine struct {
	mu            sync.RWMutex
	userID        string
	fsm           *fsm.FSM
	state         *SessionState
	onStateChange func(userID, from, to string)
}

// NewMachine 创建状态机
func NewMachine(userID, initialState string, onStateChange func(userID, from, to string)) *Machine {
	if initialState == "" {
		initialState = StatePendingStart
	}

	m := &Machine{
		userID:        userID,
		onStateChange: onStateChange,
		state: &SessionState{
			UserID:       userID,
			CurrentState: initialState,
			Since:        time.Now(),
		},
	}

	m.fsm = fsm.NewFSM(
		initialState,
		fsm.Events{
			{Name: EventConfirmStart, Src: []string{StatePendingStart}, Dst: StateActive},
			{Name: EventFailStart, Src: []string{StatePendingStart}, Dst: StateFailed},
			// 待确认状态下也可能直接观察到结束
			{Name: EventStop, Src: []string{StatePendingStart, StateActive}, Dst: StateEnded},
		},
		fsm.Callbacks{
			"after_event": func(ctx context.Context, e *fsm.Event) {
				if m.onStateChange != nil && e.Src != e.Dst {
					m.onStateChange(m.userID, e.Src, e.Dst)
				}
			},
		},
	)

	return m
}

// CurrentState 获取当前状态
func (m *Machine) CurrentState() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fsm.Current()
}

// GetState 获取状态快照
func (m *Machine) GetState() *SessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stateCopy := *m.state
	stateCopy.CurrentState = m.fsm.Current()
	return &stateCopy
}

// UpdateState 更新状态数据
func (m *Machine) UpdateState(update func(s *SessionState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	update(m.state)
}

// Trigger 触发事件
func (m *Machine) Trigger(event string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fsm.Event(context.Background(), event); err != nil {
		return fmt.Errorf("trigger event %s: %w", event, err)
	}

	m.state.CurrentState = m.fsm.Current()
	m.state.Since = time.Now()
	return nil
}

// CanTransition 检查是否可以转换
func (m *Machine) CanTransition(event string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fsm.Can(event)
}

// IsTerminal 是否已结束（ended/failed）
func (m *Machine) IsTerminal() bool {
	s := m.CurrentState()
	return s == StateEnded || s == StateFailed
}
