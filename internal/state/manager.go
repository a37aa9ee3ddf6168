package state

import (
	"sync"

	"github.com/langchou/carshare/internal/models"
)

// Manager 按用户管理行程状态机（每个用户同一时间最多一个进行中的行程）
type Manager struct {
	mu       sync.RWMutex
	machines map[string]*Machine
	onChange func(userID, from, to string)
}

// NewManager 创建管理器
func NewManager(onChange func(userID, from, to string)) *Manager {
	return &Manager{
		machines: make(map[string]*Machine),
		onChange: onChange,
	}
}

// Begin 发出开始命令前创建待确认状态机
func (m *Manager) Begin(userID, carID string) (*Machine, error) {
	m.mu.Lock()
	if existing, ok := m.machines[userID]; ok && !existing.IsTerminal() {
		m.mu.Unlock()
		return nil, ErrSessionInProgress
	}

	machine := NewMachine(userID, StatePendingStart, m.onChange)
	machine.UpdateState(func(s *SessionState) {
		s.CarID = carID
	})
	m.machines[userID] = machine
	m.mu.Unlock()

	m.notifyCreated(userID, StatePendingStart)
	return machine, nil
}

// Confirm 后端确认行程已创建
func (m *Manager) Confirm(userID string, session *models.Session) error {
	machine, ok := m.Get(userID)
	if !ok {
		return nil
	}
	if machine.CanTransition(EventConfirmStart) {
		if err := machine.Trigger(EventConfirmStart); err != nil {
			return err
		}
	}
	if session != nil {
		attach(machine, session)
	}
	return nil
}

// Fail 开始命令失败
func (m *Manager) Fail(userID string, cause error) error {
	machine, ok := m.Get(userID)
	if !ok || !machine.CanTransition(EventFailStart) {
		return nil
	}
	if err := machine.Trigger(EventFailStart); err != nil {
		return err
	}
	if cause != nil {
		machine.UpdateState(func(s *SessionState) {
			s.Error = cause.Error()
		})
	}
	return nil
}

// Stop 行程结束
func (m *Manager) Stop(userID string) error {
	machine, ok := m.Get(userID)
	if !ok || !machine.CanTransition(EventStop) {
		return nil
	}
	return machine.Trigger(EventStop)
}

// Reconcile 根据轮询观察到的进行中行程同步状态机，返回状态是否变化
// active 为 nil 时：进行中 -> 已结束；待确认保持不变，由确认重试决定是否失败
func (m *Manager) Reconcile(userID string, active *models.Session) (bool, error) {
	machine, ok := m.Get(userID)

	if active == nil {
		if ok && machine.CurrentState() == StateActive {
			return true, machine.Trigger(EventStop)
		}
		return false, nil
	}

	switch {
	case !ok || machine.IsTerminal():
		m.adopt(userID, active)
		return true, nil

	case machine.CurrentState() == StatePendingStart:
		if err := machine.Trigger(EventConfirmStart); err != nil {
			return false, err
		}
		attach(machine, active)
		return true, nil

	default:
		current := machine.GetState()
		if current.SessionID != "" && current.SessionID != active.ID {
			// 上一个行程已结束，新的行程已开始
			if err := machine.Trigger(EventStop); err != nil {
				return false, err
			}
			m.adopt(userID, active)
			return true, nil
		}
		attach(machine, active)
		return current.SessionID == "", nil
	}
}

// Get 获取状态机
func (m *Manager) Get(userID string) (*Machine, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	machine, ok := m.machines[userID]
	return machine, ok
}

// Users 返回有状态机的用户
func (m *Manager) Users() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := make([]string, 0, len(m.machines))
	for userID := range m.machines {
		users = append(users, userID)
	}
	return users
}

// GetAllStates 获取所有用户的行程状态
func (m *Manager) GetAllStates() map[string]*SessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make(map[string]*SessionState)
	for userID, machine := range m.machines {
		states[userID] = machine.GetState()
	}
	return states
}

// adopt 为在别处开始的行程直接创建 active 状态机
func (m *Manager) adopt(userID string, active *models.Session) {
	machine := NewMachine(userID, StateActive, m.onChange)
	attach(machine, active)

	m.mu.Lock()
	m.machines[userID] = machine
	m.mu.Unlock()

	m.notifyCreated(userID, StateActive)
}

func (m *Manager) notifyCreated(userID, to string) {
	if m.onChange != nil {
		m.onChange(userID, "", to)
	}
}

func attach(machine *Machine, session *models.Session) {
	sessionCopy := *session
	machine.UpdateState(func(s *SessionState) {
		s.SessionID = session.ID
		s.Session = &sessionCopy
		if carID := session.CarID(); carID != "" {
			s.CarID = carID
		}
		s.Error = ""
	})
}
