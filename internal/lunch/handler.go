package lunch

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/apt/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mensaclub/mensa/internal/access"
	"github.com/mensaclub/mensa/pkg/event"
)

const MaxBodyBytes = 1 << 20

// RequesterHeader carries the authenticated member id, resolved by the
// edge before requests reach this service.
const RequesterHeader = "X-User-ID"

type Handler struct {
	logger    apt.Logger
	config    *apt.Config
	tlm       *telemetry.HTTP
	menuRepo  MenuRepo
	orderRepo OrderRepo
	tableRepo TableRepo
	userRepo  UserRepo
	publisher events.Publisher
	levels    map[string]access.Level
	now       func() time.Time
}

type HandlerDeps struct {
	Repos     Repos
	Publisher events.Publisher
}

type Repos struct {
	MenuRepo  MenuRepo
	OrderRepo OrderRepo
	TableRepo TableRepo
	UserRepo  UserRepo
}

func NewHandler(hd HandlerDeps, config *apt.Config, logger apt.Logger) *Handler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}

	return &Handler{
		config:    config,
		logger:    logger,
		tlm:       telemetry.NewHTTP(),
		menuRepo:  hd.Repos.MenuRepo,
		orderRepo: hd.Repos.OrderRepo,
		tableRepo: hd.Repos.TableRepo,
		userRepo:  hd.Repos.UserRepo,
		publisher: hd.Publisher,
		levels:    access.DefaultLevels(logger),
		now:       time.Now,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/menus", func(r chi.Router) {
		r.Get("/", h.ListMenus)
		r.Post("/", h.CreateMenu)
		r.Get("/today", h.GetTodayMenu)
		r.Get("/{id}", h.GetMenu)
		r.Put("/{id}", h.UpdateMenu)
		r.Delete("/{id}", h.DeleteMenu)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.ListOrders)
		r.Post("/", h.CreateOrder)
		r.Get("/{id}", h.GetOrder)
		r.Put("/{id}", h.UpdateOrder)
		r.Delete("/{id}", h.DeleteOrder)
	})

	r.Route("/tables", func(r chi.Router) {
		r.Get("/", h.ListTables)
		r.Post("/", h.CreateTable)
		r.Get("/{id}", h.GetTable)
		r.Put("/{id}", h.UpdateTable)
		r.Delete("/{id}", h.DeleteTable)
	})

	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.ListUsers)
		r.Post("/", h.CreateUser)
		r.Get("/me", h.GetSelf)
		r.Get("/{id}", h.GetUser)
		r.Put("/{id}", h.UpdateUser)
		r.Delete("/{id}", h.DeleteUser)
	})
}

// Menu handlers

type MenuRequest struct {
	Owner           *uuid.UUID   `json:"owner,omitempty"`
	Enabled         *bool        `json:"enabled,omitempty"`
	Label           string       `json:"label"`
	FirstCourse     FirstCourse  `json:"first_course"`
	SecondCourse    SecondCourse `json:"second_course"`
	AdditionalInfos string       `json:"additional_infos,omitempty"`
	Day             time.Time    `json:"day"`
	Deadline        time.Time    `json:"deadline"`
	Tables          []uuid.UUID  `json:"tables"`
}

func (h *Handler) ListMenus(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListMenus")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	if _, ok := h.authorize(w, r, "user"); !ok {
		return
	}

	menus, err := h.menuRepo.List(ctx)
	if err != nil {
		log.Error("cannot list menus", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not retrieve menus")
		return
	}

	apt.RespondCollection(w, menus, "menu")
}

func (h *Handler) GetTodayMenu(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetTodayMenu")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	if _, ok := h.authorize(w, r, "user"); !ok {
		return
	}

	menu, err := h.menuRepo.GetByDay(ctx, h.now())
	if err != nil {
		log.Error("cannot load today's menu", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not retrieve menu")
		return
	}
	if menu == nil {
		apt.RespondError(w, http.StatusNotFound, "No menu published today")
		return
	}

	links := apt.RESTfulLinksFor(menu)
	apt.RespondSuccess(w, menu, links...)
}

func (h *Handler) GetMenu(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetMenu")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	if _, ok := h.authorize(w, r, "user"); !ok {
		return
	}

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	menu, err := h.menuRepo.Get(ctx, id)
	if err != nil {
		log.Error("error loading menu", "error", err, "id", id.String())
		apt.RespondError(w, http.StatusInternalServerError, "Could not retrieve menu")
		return
	}
	if menu == nil || menu.Deleted {
		apt.RespondError(w, http.StatusNotFound, "Menu not found")
		return
	}

	links := apt.RESTfulLinksFor(menu)
	apt.RespondSuccess(w, menu, links...)
}

func (h *Handler) CreateMenu(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CreateMenu")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	requester, ok := h.authorize(w, r, "admin")
	if !ok {
		return
	}

	var req MenuRequest
	if !h.decode(w, r, log, &req) {
		return
	}

	menu := NewDailyMenu()
	menu.Owner = requester.ID
	if req.Owner != nil {
		menu.Owner = *req.Owner
	}
	applyMenuRequest(menu, req)

	if !h.validateMenuWrite(ctx, w, log, menu) {
		return
	}

	existing, err := h.menuRepo.GetByDay(ctx, menu.Day)
	if err != nil {
		log.Error("cannot check existing menu", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not create menu")
		return
	}
	if existing != nil {
		apt.RespondError(w, http.StatusConflict, "A menu is already published for this day")
		return
	}

	menu.BeforeCreate()
	if err := h.menuRepo.Create(ctx, menu); err != nil {
		log.Error("cannot create menu", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not create menu")
		return
	}

	links := apt.RESTfulLinksFor(menu)
	w.WriteHeader(http.StatusCreated)
	apt.RespondSuccess(w, menu, links...)
}

// UpdateMenu edits a live menu, then decides which placed orders the edit
// invalidated: those are purged and their owners renotified through the
// publisher.
func (h *Handler) UpdateMenu(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateMenu")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	if _, ok := h.authorize(w, r, "admin"); !ok {
		return
	}

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	menu, err := h.menuRepo.Get(ctx, id)
	if err != nil {
		log.Error("error loading menu", "error", err, "id", id.String())
		apt.RespondError(w, http.StatusInternalServerError, "Could not update menu")
		return
	}
	if menu == nil || menu.Deleted {
		apt.RespondError(w, http.StatusNotFound, "Menu not found")
		return
	}

	var req MenuRequest
	if !h.decode(w, r, log, &req) {
		return
	}

	before := menu.Clone()
	applyMenuRequest(menu, req)

	if !h.validateMenuWrite(ctx, w, log, menu) {
		return
	}

	if !TruncateDay(req.Day).Equal(before.Day) {
		other, err := h.menuRepo.GetByDay(ctx, menu.Day)
		if err != nil {
			log.Error("cannot check existing menu", "error", err)
			apt.RespondError(w, http.StatusInternalServerError, "Could not update menu")
			return
		}
		if other != nil && other.ID != menu.ID {
			apt.RespondError(w, http.StatusConflict, "A menu is already published for this day")
			return
		}
	}

	menu.BeforeUpdate()
	if err := h.menuRepo.Save(ctx, menu); err != nil {
		log.Error("cannot save menu", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not update menu")
		return
	}

	orders, err := h.orderRepo.ListActiveByMenu(ctx, menu.ID)
	if err != nil {
		log.Error("cannot list orders for edited menu", "error", err, "menu_id", menu.ID.String())
		apt.RespondError(w, http.StatusInternalServerError, "Menu saved but orders could not be checked")
		return
	}

	invalidated, stillValid := DiffOrders(before, menu, orders)

	for _, order := range invalidated {
		if err := h.orderRepo.Delete(ctx, order.ID); err != nil {
			log.Error("cannot purge invalidated order", "error", err, "order_id", order.ID.String())
			continue
		}
		h.publishOrderInvalidated(ctx, order, menu)
	}

	h.publishMenuUpdated(ctx, menu, len(invalidated), len(stillValid))

	log.Info("menu updated",
		"menu_id", menu.ID.String(),
		"invalidated_orders", len(invalidated),
		"still_valid_orders", len(stillValid),
	)

	response := map[string]interface{}{
		"menu":              menu,
		"invalidated_count": len(invalidated),
		"still_valid_count": len(stillValid),
	}
	apt.Respond(w, http.StatusOK, response, nil)
}

func (h *Handler) DeleteMenu(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.DeleteMenu")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	if _, ok := h.authorize(w, r, "admin"); !ok {
		return
	}

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	if err := h.menuRepo.Delete(ctx, id); err != nil {
		log.Error("cannot delete menu", "error", err, "id", id.String())
		apt.RespondError(w, http.StatusInternalServerError, "Could not delete menu")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// applyMenuRequest copies the editable fields onto the menu document.
func applyMenuRequest(menu *DailyMenu, req MenuRequest) {
	menu.Label = req.Label
	menu.FirstCourse = req.FirstCourse
	menu.SecondCourse = req.SecondCourse
	menu.AdditionalInfos = req.AdditionalInfos
	menu.Day = TruncateDay(req.Day)
	menu.Deadline = req.Deadline
	menu.Tables = req.Tables
	if menu.Tables == nil {
		menu.Tables = []uuid.UUID{}
	}
	if req.Enabled != nil {
		menu.Enabled = *req.Enabled
	}
}

// validateMenuWrite runs the strict index build and resolves every table
// reference. Responds and returns false when the menu must be rejected.
func (h *Handler) validateMenuWrite(ctx context.Context, w http.ResponseWriter, log apt.Logger, menu *DailyMenu) bool {
	if _, errs := NewMenuIndex(menu); len(errs) > 0 {
		apt.Respond(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"errors": errs,
		}, nil)
		return false
	}

	for _, tableID := range menu.Tables {
		table, err := h.tableRepo.Get(ctx, tableID)
		if err != nil {
			log.Error("cannot resolve menu table", "error", err, "table_id", tableID.String())
			apt.RespondError(w, http.StatusInternalServerError, "Could not resolve menu tables")
			return false
		}
		if table == nil || !table.Available() {
			apt.Respond(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"errors": []ValidationError{
					{Field: "tables", Code: CodeUnknownTable, Message: "table " + tableID.String() + " is not available"},
				},
			}, nil)
			return false
		}
	}
	return true
}

// Order handlers

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CreateOrder")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	requester, ok := h.authorize(w, r, "user")
	if !ok {
		return
	}

	var req OrderRequest
	if !h.decode(w, r, log, &req) {
		return
	}

	octx, err := h.orderContext(ctx, requester, req, nil)
	if err != nil {
		log.Error("cannot assemble order context", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not process order")
		return
	}

	order, verr := ValidateOrder(requester, req, octx)
	if verr != nil {
		h.respondRejection(w, log, verr)
		return
	}

	order.BeforeCreate()
	if err := h.orderRepo.Create(ctx, order); err != nil {
		log.Error("cannot create order", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not create order")
		return
	}

	links := apt.RESTfulLinksFor(order)
	w.WriteHeader(http.StatusCreated)
	apt.RespondSuccess(w, order, links...)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetOrder")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	requester, ok := h.authorize(w, r, "user")
	if !ok {
		return
	}

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	order, err := h.orderRepo.Get(ctx, id)
	if err != nil {
		log.Error("error loading order", "error", err, "id", id.String())
		apt.RespondError(w, http.StatusInternalServerError, "Could not retrieve order")
		return
	}
	if order == nil || order.Deleted {
		apt.RespondError(w, http.StatusNotFound, "Order not found")
		return
	}
	if order.Owner != requester.ID && !requester.IsAdmin() {
		apt.RespondError(w, http.StatusForbidden, "Not your order")
		return
	}

	links := apt.RESTfulLinksFor(order)
	apt.RespondSuccess(w, order, links...)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListOrders")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	requester, ok := h.authorize(w, r, "user")
	if !ok {
		return
	}

	menuIDStr := r.URL.Query().Get("menu_id")

	var orders []*Order
	var err error

	switch {
	case menuIDStr != "":
		menuID, parseErr := uuid.Parse(menuIDStr)
		if parseErr != nil {
			log.Debug("invalid menu_id parameter", "menu_id", menuIDStr)
			apt.RespondError(w, http.StatusBadRequest, "Invalid menu_id parameter")
			return
		}
		orders, err = h.orderRepo.ListActiveByMenu(ctx, menuID)
	case requester.IsAdmin():
		orders, err = h.orderRepo.List(ctx)
	default:
		orders, err = h.ownOrdersToday(ctx, requester)
	}

	if err != nil {
		log.Error("error retrieving orders", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not retrieve orders")
		return
	}

	if !requester.IsAdmin() {
		own := orders[:0]
		for _, o := range orders {
			if o.Owner == requester.ID {
				own = append(own, o)
			}
		}
		orders = own
	}

	apt.RespondCollection(w, orders, "order")
}

func (h *Handler) ownOrdersToday(ctx context.Context, requester *User) ([]*Order, error) {
	menu, err := h.menuRepo.GetByDay(ctx, h.now())
	if err != nil || menu == nil {
		return nil, err
	}
	order, err := h.orderRepo.GetActiveByOwner(ctx, requester.ID, menu.ID)
	if err != nil || order == nil {
		return nil, err
	}
	return []*Order{order}, nil
}

func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateOrder")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	requester, ok := h.authorize(w, r, "user")
	if !ok {
		return
	}

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	order, err := h.orderRepo.Get(ctx, id)
	if err != nil {
		log.Error("error loading order", "error", err, "id", id.String())
		apt.RespondError(w, http.StatusInternalServerError, "Could not update order")
		return
	}
	if order == nil || order.Deleted {
		apt.RespondError(w, http.StatusNotFound, "Order not found")
		return
	}
	if order.Owner != requester.ID && !requester.IsAdmin() {
		apt.RespondError(w, http.StatusForbidden, "Not your order")
		return
	}

	var req OrderRequest
	if !h.decode(w, r, log, &req) {
		return
	}

	octx, err := h.orderContext(ctx, requester, req, order)
	if err != nil {
		log.Error("cannot assemble order context", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not process order")
		return
	}

	updated, verr := ValidateOrder(requester, req, octx)
	if verr != nil {
		h.respondRejection(w, log, verr)
		return
	}

	updated.BeforeUpdate()
	if err := h.orderRepo.Save(ctx, updated); err != nil {
		log.Error("cannot save order", "error", err, "id", updated.ID.String())
		apt.RespondError(w, http.StatusInternalServerError, "Could not update order")
		return
	}

	links := apt.RESTfulLinksFor(updated)
	apt.RespondSuccess(w, updated, links...)
}

func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.DeleteOrder")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	requester, ok := h.authorize(w, r, "user")
	if !ok {
		return
	}

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	order, err := h.orderRepo.Get(ctx, id)
	if err != nil {
		log.Error("error loading order", "error", err, "id", id.String())
		apt.RespondError(w, http.StatusInternalServerError, "Could not delete order")
		return
	}
	if order == nil || order.Deleted {
		apt.RespondError(w, http.StatusNotFound, "Order not found")
		return
	}
	if order.Owner != requester.ID && !requester.IsAdmin() {
		apt.RespondError(w, http.StatusForbidden, "Not your order")
		return
	}

	if err := h.orderRepo.Delete(ctx, id); err != nil {
		log.Error("cannot delete order", "error", err, "id", id.String())
		apt.RespondError(w, http.StatusInternalServerError, "Could not delete order")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// orderContext gathers the documents and counts the validator decides on.
// The occupancy count is re-evaluated here, inside the write request, to
// keep the window between check and insert as small as the storage layer
// allows; the unique (owner, menu) index backstops the per-user rule.
func (h *Handler) orderContext(ctx context.Context, requester *User, req OrderRequest, updating *Order) (OrderContext, error) {
	octx := OrderContext{
		Now:      h.now(),
		Updating: updating,
	}

	menu, err := h.menuRepo.GetByDay(ctx, octx.Now)
	if err != nil {
		return octx, err
	}
	octx.Menu = menu
	if menu == nil {
		return octx, nil
	}

	table, err := h.tableRepo.Get(ctx, req.TableID)
	if err != nil {
		return octx, err
	}
	octx.Table = table

	owner := EffectiveOwner(requester, req)
	existing, err := h.orderRepo.GetActiveByOwner(ctx, owner, menu.ID)
	if err != nil {
		return octx, err
	}
	octx.Existing = existing

	var exclude *uuid.UUID
	if updating != nil {
		exclude = &updating.ID
	}
	occupied, err := h.orderRepo.CountActive(ctx, menu.ID, req.TableID, exclude)
	if err != nil {
		return octx, err
	}
	octx.Occupied = occupied

	return octx, nil
}

// Table handlers

type TableRequest struct {
	Name    string `json:"name"`
	Seats   int    `json:"seats"`
	Enabled *bool  `json:"enabled,omitempty"`
}

func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListTables")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	if _, ok := h.authorize(w, r, "user"); !ok {
		return
	}

	tables, err := h.tableRepo.List(ctx)
	if err != nil {
		log.Error("error retrieving tables", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not retrieve tables")
		return
	}

	apt.RespondCollection(w, tables, "table")
}

func (h *Handler) GetTable(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetTable")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	if _, ok := h.authorize(w, r, "user"); !ok {
		return
	}

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	table, err := h.tableRepo.Get(ctx, id)
	if err != nil {
		log.Error("error loading table", "error", err, "id", id.String())
		apt.RespondError(w, http.StatusInternalServerError, "Could not retrieve table")
		return
	}
	if table == nil || table.Deleted {
		apt.RespondError(w, http.StatusNotFound, "Table not found")
		return
	}

	links := apt.RESTfulLinksFor(table)
	apt.RespondSuccess(w, table, links...)
}

func (h *Handler) CreateTable(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CreateTable")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	if _, ok := h.authorize(w, r, "admin"); !ok {
		return
	}

	var req TableRequest
	if !h.decode(w, r, log, &req) {
		return
	}
	if req.Name == "" {
		apt.RespondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Seats < 1 {
		apt.RespondError(w, http.StatusBadRequest, "seats must be at least 1")
		return
	}

	existing, err := h.tableRepo.GetByName(ctx, req.Name)
	if err != nil {
		log.Error("cannot check existing table", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not create table")
		return
	}
	if existing != nil {
		apt.RespondError(w, http.StatusConflict, "Table already exists")
		return
	}

	table := NewTable()
	table.Name = req.Name
	table.Seats = req.Seats
	if req.Enabled != nil {
		table.Enabled = *req.Enabled
	}

	table.BeforeCreate()
	if err := h.tableRepo.Create(ctx, table); err != nil {
		log.Error("cannot create table", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not create table")
		return
	}

	links := apt.RESTfulLinksFor(table)
	w.WriteHeader(http.StatusCreated)
	apt.RespondSuccess(w, table, links...)
}

func (h *Handler) UpdateTable(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateTable")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	if _, ok := h.authorize(w, r, "admin"); !ok {
		return
	}

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	table, err := h.tableRepo.Get(ctx, id)
	if err != nil {
		log.Error("error loading table", "error", err, "id", id.String())
		apt.RespondError(w, http.StatusInternalServerError, "Could not update table")
		return
	}
	if table == nil || table.Deleted {
		apt.RespondError(w, http.StatusNotFound, "Table not found")
		return
	}

	var req TableRequest
	if !h.decode(w, r, log, &req) {
		return
	}

	if req.Name != "" {
		table.Name = req.Name
	}
	if req.Seats > 0 {
		table.Seats = req.Seats
	}
	if req.Enabled != nil {
		table.Enabled = *req.Enabled
	}

	table.BeforeUpdate()
	if err := h.tableRepo.Save(ctx, table); err != nil {
		log.Error("cannot save table", "error", err, "id", id.String())
		apt.RespondError(w, http.StatusInternalServerError, "Could not update table")
		return
	}

	links := apt.RESTfulLinksFor(table)
	apt.RespondSuccess(w, table, links...)
}

func (h *Handler) DeleteTable(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.DeleteTable")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	if _, ok := h.authorize(w, r, "admin"); !ok {
		return
	}

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	if err := h.tableRepo.Delete(ctx, id); err != nil {
		log.Error("cannot delete table", "error", err, "id", id.String())
		apt.RespondError(w, http.StatusInternalServerError, "Could not delete table")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// User handlers

type UserRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role,omitempty"`
	Enabled  *bool  `json:"enabled,omitempty"`
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListUsers")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	if _, ok := h.authorize(w, r, "admin"); !ok {
		return
	}

	users, err := h.userRepo.List(ctx)
	if err != nil {
		log.Error("error retrieving users", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not retrieve users")
		return
	}

	apt.RespondCollection(w, users, "user")
}

func (h *Handler) GetSelf(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetSelf")
	defer finish()

	requester, ok := h.authorize(w, r, "user")
	if !ok {
		return
	}

	links := apt.RESTfulLinksFor(requester)
	apt.RespondSuccess(w, requester, links...)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetUser")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	if _, ok := h.authorize(w, r, "admin"); !ok {
		return
	}

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	user, err := h.userRepo.Get(ctx, id)
	if err != nil {
		log.Error("error loading user", "error", err, "id", id.String())
		apt.RespondError(w, http.StatusInternalServerError, "Could not retrieve user")
		return
	}
	if user == nil || user.Deleted {
		apt.RespondError(w, http.StatusNotFound, "User not found")
		return
	}

	links := apt.RESTfulLinksFor(user)
	apt.RespondSuccess(w, user, links...)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CreateUser")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	requester, ok := h.authorize(w, r, "admin")
	if !ok {
		return
	}

	var req UserRequest
	if !h.decode(w, r, log, &req) {
		return
	}
	if req.Username == "" {
		apt.RespondError(w, http.StatusBadRequest, "username is required")
		return
	}

	role := access.RoleUser
	if req.Role != "" {
		parsed, ok := access.ParseRole(req.Role)
		if !ok {
			apt.RespondError(w, http.StatusBadRequest, "unknown role")
			return
		}
		role = parsed
	}
	// Only root may mint admins and other roots.
	if role.BitMask() >= access.RoleAdmin.BitMask() && !requester.Role.Is(access.RoleRoot) {
		apt.RespondError(w, http.StatusForbidden, "only root can assign this role")
		return
	}

	existing, err := h.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		log.Error("cannot check existing user", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not create user")
		return
	}
	if existing != nil {
		apt.RespondError(w, http.StatusConflict, "User already exists")
		return
	}

	user := NewUser()
	user.Username = req.Username
	user.Name = req.Name
	user.Email = req.Email
	user.Role = role
	if req.Enabled != nil {
		user.Enabled = *req.Enabled
	}

	user.BeforeCreate()
	if err := h.userRepo.Create(ctx, user); err != nil {
		log.Error("cannot create user", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not create user")
		return
	}

	links := apt.RESTfulLinksFor(user)
	w.WriteHeader(http.StatusCreated)
	apt.RespondSuccess(w, user, links...)
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateUser")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	requester, ok := h.authorize(w, r, "admin")
	if !ok {
		return
	}

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	user, err := h.userRepo.Get(ctx, id)
	if err != nil {
		log.Error("error loading user", "error", err, "id", id.String())
		apt.RespondError(w, http.StatusInternalServerError, "Could not update user")
		return
	}
	if user == nil || user.Deleted {
		apt.RespondError(w, http.StatusNotFound, "User not found")
		return
	}

	var req UserRequest
	if !h.decode(w, r, log, &req) {
		return
	}

	if req.Username != "" {
		user.Username = req.Username
	}
	if req.Name != "" {
		user.Name = req.Name
	}
	if req.Email != "" {
		user.Email = req.Email
	}
	if req.Role != "" {
		role, ok := access.ParseRole(req.Role)
		if !ok {
			apt.RespondError(w, http.StatusBadRequest, "unknown role")
			return
		}
		if role.BitMask() >= access.RoleAdmin.BitMask() && !requester.Role.Is(access.RoleRoot) {
			apt.RespondError(w, http.StatusForbidden, "only root can assign this role")
			return
		}
		user.Role = role
	}
	if req.Enabled != nil {
		user.Enabled = *req.Enabled
	}

	user.BeforeUpdate()
	if err := h.userRepo.Save(ctx, user); err != nil {
		log.Error("cannot save user", "error", err, "id", id.String())
		apt.RespondError(w, http.StatusInternalServerError, "Could not update user")
		return
	}

	links := apt.RESTfulLinksFor(user)
	apt.RespondSuccess(w, user, links...)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.DeleteUser")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	if _, ok := h.authorize(w, r, "root"); !ok {
		return
	}

	id, ok := h.parseIDParam(w, r, log)
	if !ok {
		return
	}

	if err := h.userRepo.Delete(ctx, id); err != nil {
		log.Error("cannot delete user", "error", err, "id", id.String())
		apt.RespondError(w, http.StatusInternalServerError, "Could not delete user")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Helper methods

var anonymous = &User{Role: access.RolePublic}

// requester resolves the caller from the identity header. Unknown or
// missing identities degrade to the anonymous public role rather than
// failing: the access level decides what public can reach.
func (h *Handler) requester(r *http.Request) *User {
	idStr := r.Header.Get(RequesterHeader)
	if idStr == "" {
		return anonymous
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return anonymous
	}
	user, err := h.userRepo.Get(r.Context(), id)
	if err != nil || user == nil || user.Deleted || !user.Enabled {
		return anonymous
	}
	return user
}

// authorize gates the request on a declared access level and returns the
// resolved requester.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, levelName string) (*User, bool) {
	requester := h.requester(r)
	level, ok := h.levels[levelName]
	if !ok {
		h.log(r).Error("undeclared access level", "level", levelName)
		apt.RespondError(w, http.StatusInternalServerError, "Access level misconfigured")
		return nil, false
	}
	if !level.Allows(requester.Role) {
		if requester == anonymous {
			apt.RespondError(w, http.StatusUnauthorized, "Authentication required")
		} else {
			apt.RespondError(w, http.StatusForbidden, "Insufficient role")
		}
		return nil, false
	}
	return requester, true
}

func (h *Handler) parseIDParam(w http.ResponseWriter, r *http.Request, log apt.Logger) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	if idStr == "" {
		log.Debug("missing id parameter")
		apt.RespondError(w, http.StatusBadRequest, "Missing id parameter")
		return uuid.Nil, false
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		log.Debug("invalid id parameter", "id", idStr)
		apt.RespondError(w, http.StatusBadRequest, "Invalid id parameter")
		return uuid.Nil, false
	}

	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, log apt.Logger, target interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		log.Debug("failed to decode request body", "error", err)
		apt.RespondError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return false
	}
	return true
}

// respondRejection maps a business-rule rejection to its HTTP status: a
// missing daily menu is a 404, everything else a 400 with the reason code.
func (h *Handler) respondRejection(w http.ResponseWriter, log apt.Logger, err error) {
	verr, ok := err.(*ValidationError)
	if !ok {
		log.Error("unexpected validation failure", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not process order")
		return
	}

	status := http.StatusBadRequest
	if verr.Code == CodeNoDailyMenu {
		status = http.StatusNotFound
	}

	log.Debug("order rejected", "code", verr.Code, "field", verr.Field)
	apt.Respond(w, status, map[string]interface{}{
		"error": verr,
	}, nil)
}

func (h *Handler) publishOrderInvalidated(ctx context.Context, order *Order, menu *DailyMenu) {
	if h.publisher == nil {
		return
	}

	evt := event.OrderInvalidatedEvent{
		EventType:  event.EventOrderInvalidated,
		OccurredAt: time.Now().UTC(),
		OrderID:    order.ID.String(),
		OwnerID:    order.Owner.String(),
		MenuID:     menu.ID.String(),
		MenuLabel:  menu.Label,
		Day:        menu.Day,
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("cannot marshal order invalidated event", "error", err, "order_id", order.ID.String())
		return
	}
	if err := h.publisher.Publish(ctx, event.OrdersTopic, payload); err != nil {
		h.logger.Error("cannot publish order invalidated event", "error", err, "order_id", order.ID.String())
	}
}

func (h *Handler) publishMenuUpdated(ctx context.Context, menu *DailyMenu, invalidated, stillValid int) {
	if h.publisher == nil {
		return
	}

	evt := event.MenuUpdatedEvent{
		EventType:        event.EventMenuUpdated,
		OccurredAt:       time.Now().UTC(),
		MenuID:           menu.ID.String(),
		MenuLabel:        menu.Label,
		Day:              menu.Day,
		InvalidatedCount: invalidated,
		StillValidCount:  stillValid,
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("cannot marshal menu updated event", "error", err, "menu_id", menu.ID.String())
		return
	}
	if err := h.publisher.Publish(ctx, event.MenusTopic, payload); err != nil {
		h.logger.Error("cannot publish menu updated event", "error", err, "menu_id", menu.ID.String())
	}
}

func (h *Handler) log(r *http.Request) apt.Logger {
	return h.logger.With(
		"request_id", apt.RequestIDFrom(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	)
}
