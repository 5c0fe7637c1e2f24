package lunch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockMenuRepo is a test mock for MenuRepo
type MockMenuRepo struct {
	menus      map[uuid.UUID]*DailyMenu
	GetFunc    func(ctx context.Context, id uuid.UUID) (*DailyMenu, error)
	SaveFunc   func(ctx context.Context, menu *DailyMenu) error
	CreateFunc func(ctx context.Context, menu *DailyMenu) error
}

func NewMockMenuRepo() *MockMenuRepo {
	return &MockMenuRepo{menus: make(map[uuid.UUID]*DailyMenu)}
}

func (m *MockMenuRepo) Create(ctx context.Context, menu *DailyMenu) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, menu)
	}
	m.menus[menu.ID] = menu
	return nil
}

func (m *MockMenuRepo) Get(ctx context.Context, id uuid.UUID) (*DailyMenu, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return m.menus[id], nil
}

func (m *MockMenuRepo) GetByDay(ctx context.Context, day time.Time) (*DailyMenu, error) {
	target := TruncateDay(day)
	for _, menu := range m.menus {
		if menu.Active() && TruncateDay(menu.Day).Equal(target) {
			return menu, nil
		}
	}
	return nil, nil
}

func (m *MockMenuRepo) List(ctx context.Context) ([]*DailyMenu, error) {
	result := make([]*DailyMenu, 0, len(m.menus))
	for _, menu := range m.menus {
		if !menu.Deleted {
			result = append(result, menu)
		}
	}
	return result, nil
}

func (m *MockMenuRepo) Save(ctx context.Context, menu *DailyMenu) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, menu)
	}
	if _, exists := m.menus[menu.ID]; !exists {
		return errors.New("menu not found")
	}
	m.menus[menu.ID] = menu
	return nil
}

func (m *MockMenuRepo) Delete(ctx context.Context, id uuid.UUID) error {
	menu, exists := m.menus[id]
	if !exists {
		return errors.New("menu not found")
	}
	menu.Deleted = true
	return nil
}

// MockOrderRepo is a test mock for OrderRepo
type MockOrderRepo struct {
	orders     map[uuid.UUID]*Order
	order      []uuid.UUID
	CreateFunc func(ctx context.Context, order *Order) error
	DeleteFunc func(ctx context.Context, id uuid.UUID) error
}

func NewMockOrderRepo() *MockOrderRepo {
	return &MockOrderRepo{orders: make(map[uuid.UUID]*Order)}
}

func (m *MockOrderRepo) Create(ctx context.Context, order *Order) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, order)
	}
	m.orders[order.ID] = order
	m.order = append(m.order, order.ID)
	return nil
}

func (m *MockOrderRepo) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	return m.orders[id], nil
}

func (m *MockOrderRepo) List(ctx context.Context) ([]*Order, error) {
	result := make([]*Order, 0, len(m.order))
	for _, id := range m.order {
		if o := m.orders[id]; o != nil && !o.Deleted {
			result = append(result, o)
		}
	}
	return result, nil
}

func (m *MockOrderRepo) ListActiveByMenu(ctx context.Context, menuID uuid.UUID) ([]*Order, error) {
	var result []*Order
	for _, id := range m.order {
		o := m.orders[id]
		if o != nil && !o.Deleted && o.MenuID == menuID {
			result = append(result, o)
		}
	}
	return result, nil
}

func (m *MockOrderRepo) GetActiveByOwner(ctx context.Context, ownerID, menuID uuid.UUID) (*Order, error) {
	for _, id := range m.order {
		o := m.orders[id]
		if o != nil && !o.Deleted && o.Owner == ownerID && o.MenuID == menuID {
			return o, nil
		}
	}
	return nil, nil
}

func (m *MockOrderRepo) CountActive(ctx context.Context, menuID, tableID uuid.UUID, exclude *uuid.UUID) (int, error) {
	count := 0
	for _, o := range m.orders {
		if o.Deleted || o.MenuID != menuID || o.TableID != tableID {
			continue
		}
		if exclude != nil && o.ID == *exclude {
			continue
		}
		count++
	}
	return count, nil
}

func (m *MockOrderRepo) Save(ctx context.Context, order *Order) error {
	if _, exists := m.orders[order.ID]; !exists {
		return errors.New("order not found")
	}
	m.orders[order.ID] = order
	return nil
}

func (m *MockOrderRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	order, exists := m.orders[id]
	if !exists {
		return errors.New("order not found")
	}
	order.Deleted = true
	return nil
}

// MockTableRepo is a test mock for TableRepo
type MockTableRepo struct {
	tables map[uuid.UUID]*Table
}

func NewMockTableRepo() *MockTableRepo {
	return &MockTableRepo{tables: make(map[uuid.UUID]*Table)}
}

func (m *MockTableRepo) Create(ctx context.Context, table *Table) error {
	m.tables[table.ID] = table
	return nil
}

func (m *MockTableRepo) Get(ctx context.Context, id uuid.UUID) (*Table, error) {
	return m.tables[id], nil
}

func (m *MockTableRepo) GetByName(ctx context.Context, name string) (*Table, error) {
	for _, t := range m.tables {
		if t.Name == name && !t.Deleted {
			return t, nil
		}
	}
	return nil, nil
}

func (m *MockTableRepo) List(ctx context.Context) ([]*Table, error) {
	result := make([]*Table, 0, len(m.tables))
	for _, t := range m.tables {
		if !t.Deleted {
			result = append(result, t)
		}
	}
	return result, nil
}

func (m *MockTableRepo) Save(ctx context.Context, table *Table) error {
	if _, exists := m.tables[table.ID]; !exists {
		return errors.New("table not found")
	}
	m.tables[table.ID] = table
	return nil
}

func (m *MockTableRepo) Delete(ctx context.Context, id uuid.UUID) error {
	table, exists := m.tables[id]
	if !exists {
		return errors.New("table not found")
	}
	table.Deleted = true
	return nil
}

// MockUserRepo is a test mock for UserRepo
type MockUserRepo struct {
	users map[uuid.UUID]*User
}

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{users: make(map[uuid.UUID]*User)}
}

func (m *MockUserRepo) Create(ctx context.Context, user *User) error {
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepo) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return m.users[id], nil
}

func (m *MockUserRepo) GetByUsername(ctx context.Context, username string) (*User, error) {
	for _, u := range m.users {
		if u.Username == username && !u.Deleted {
			return u, nil
		}
	}
	return nil, nil
}

func (m *MockUserRepo) List(ctx context.Context) ([]*User, error) {
	result := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		if !u.Deleted {
			result = append(result, u)
		}
	}
	return result, nil
}

func (m *MockUserRepo) Save(ctx context.Context, user *User) error {
	if _, exists := m.users[user.ID]; !exists {
		return errors.New("user not found")
	}
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	user, exists := m.users[id]
	if !exists {
		return errors.New("user not found")
	}
	user.Deleted = true
	return nil
}

// MockPublisher is a test mock for events.Publisher
type MockPublisher struct {
	mu          sync.Mutex
	Published   []PublishedEvent
	PublishFunc func(ctx context.Context, topic string, msg []byte) error
}

type PublishedEvent struct {
	Topic   string
	Payload []byte
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, topic, msg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Published = append(m.Published, PublishedEvent{Topic: topic, Payload: msg})
	return nil
}

func (m *MockPublisher) Events(topic string) []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []PublishedEvent
	for _, e := range m.Published {
		if e.Topic == topic {
			result = append(result, e)
		}
	}
	return result
}
