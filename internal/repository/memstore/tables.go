package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/repository"
)

type (
	userRow         = domain.User
	ticketRow       = domain.Ticket
	commentRow      = domain.Comment
	partRow         = domain.Part
	notificationRow = domain.Notification
	historyRow      = domain.TicketHistory
)

type usageRow struct {
	Quantity int
	UsedDate time.Time
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyTicket(t domain.Ticket) domain.Ticket {
	t.CompletionDate = copyTime(t.CompletionDate)
	t.ExtendedDeadline = copyTime(t.ExtendedDeadline)
	t.MasterID = copyID(t.MasterID)
	t.QualityManagerID = copyID(t.QualityManagerID)
	return t
}

func copyValues(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

type userTable struct{ s *Store }

func (t *userTable) Create(ctx context.Context, user *domain.User) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, existing := range t.s.st.users {
		if existing.Login == user.Login {
			return repository.ErrDuplicate
		}
	}
	user.ID = t.s.nextID()
	user.CreatedAt = t.s.now()
	remember(ctx, &t.s.st, usersOf, user.ID)
	t.s.st.users[user.ID] = *user
	return nil
}

func (t *userTable) Update(ctx context.Context, user *domain.User) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	row, ok := t.s.st.users[user.ID]
	if !ok {
		return repository.ErrNotFound
	}
	row.FullName = user.FullName
	row.Phone = user.Phone
	row.PasswordHash = user.PasswordHash
	row.Active = user.Active
	remember(ctx, &t.s.st, usersOf, user.ID)
	t.s.st.users[user.ID] = row
	return nil
}

func (t *userTable) GetByID(_ context.Context, id int64) (*domain.User, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	row, ok := t.s.st.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &row, nil
}

func (t *userTable) GetByLogin(_ context.Context, login string) (*domain.User, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	for _, row := range t.s.st.users {
		if row.Login == login {
			return &row, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (t *userTable) ListByRole(_ context.Context, role domain.Role, activeOnly bool) ([]domain.User, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	var result []domain.User
	for _, row := range t.s.st.users {
		if row.Role != role || (activeOnly && !row.Active) {
			continue
		}
		result = append(result, row)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].FullName != result[j].FullName {
			return result[i].FullName < result[j].FullName
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

type ticketTable struct{ s *Store }

func (t *ticketTable) Create(ctx context.Context, ticket *domain.Ticket) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, ok := t.s.st.users[ticket.ClientID]; !ok {
		return fmt.Errorf("memstore: client %d does not exist", ticket.ClientID)
	}
	now := t.s.now()
	ticket.ID = t.s.nextID()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	remember(ctx, &t.s.st, ticketsOf, ticket.ID)
	t.s.st.tickets[ticket.ID] = copyTicket(*ticket)
	return nil
}

func (t *ticketTable) Update(ctx context.Context, ticket *domain.Ticket) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	row, ok := t.s.st.tickets[ticket.ID]
	if !ok {
		return repository.ErrNotFound
	}
	row.ApplianceType = ticket.ApplianceType
	row.ApplianceModel = ticket.ApplianceModel
	row.ProblemDescription = ticket.ProblemDescription
	row.Status = ticket.Status
	row.CompletionDate = copyTime(ticket.CompletionDate)
	row.ExtendedDeadline = copyTime(ticket.ExtendedDeadline)
	row.RepairParts = ticket.RepairParts
	row.Priority = ticket.Priority
	row.EstimatedCost = ticket.EstimatedCost
	row.ActualCost = ticket.ActualCost
	row.MasterID = copyID(ticket.MasterID)
	row.QualityManagerID = copyID(ticket.QualityManagerID)
	row.UpdatedAt = t.s.now()
	remember(ctx, &t.s.st, ticketsOf, ticket.ID)
	t.s.st.tickets[ticket.ID] = row
	ticket.UpdatedAt = row.UpdatedAt
	return nil
}

func (t *ticketTable) AppendNote(ctx context.Context, id int64, line string) (string, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	row, ok := t.s.st.tickets[id]
	if !ok {
		return "", repository.ErrNotFound
	}
	if row.Notes == "" {
		row.Notes = line
	} else {
		row.Notes += "\n" + line
	}
	row.UpdatedAt = t.s.now()
	remember(ctx, &t.s.st, ticketsOf, id)
	t.s.st.tickets[id] = row
	return row.Notes, nil
}

func (t *ticketTable) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	row, ok := t.s.st.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	ticket := t.project(row)
	return &ticket, nil
}

func (t *ticketTable) project(row domain.Ticket) domain.Ticket {
	ticket := copyTicket(row)
	if client, ok := t.s.st.users[row.ClientID]; ok {
		ticket.ClientName = client.FullName
	}
	if row.MasterID != nil {
		if master, ok := t.s.st.users[*row.MasterID]; ok {
			ticket.MasterName = master.FullName
		}
	}
	return ticket
}

func (t *ticketTable) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	search := ""
	if filter.SearchTerm != nil {
		search = strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
	}
	applianceType := ""
	if filter.ApplianceType != nil {
		applianceType = strings.TrimSpace(*filter.ApplianceType)
	}

	var result []domain.Ticket
	for _, row := range t.s.st.tickets {
		ticket := t.project(row)
		if filter.ClientID != nil && ticket.ClientID != *filter.ClientID {
			continue
		}
		if filter.MasterID != nil && (ticket.MasterID == nil || *ticket.MasterID != *filter.MasterID) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
			continue
		}
		if applianceType != "" && ticket.ApplianceType != applianceType {
			continue
		}
		if filter.Priority != nil && ticket.Priority != *filter.Priority {
			continue
		}
		if filter.StartFrom != nil && ticket.StartDate.Before(domain.DateOf(*filter.StartFrom)) {
			continue
		}
		if filter.StartTo != nil && ticket.StartDate.After(domain.DateOf(*filter.StartTo)) {
			continue
		}
		if search != "" && !matchesSearch(ticket, search) {
			continue
		}
		result = append(result, ticket)
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if !a.StartDate.Equal(b.StartDate) {
			return a.StartDate.After(b.StartDate)
		}
		return a.ID > b.ID
	})

	if filter.Limit > 0 {
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		if offset >= len(result) {
			return nil, nil
		}
		end := offset + filter.Limit
		if end > len(result) {
			end = len(result)
		}
		result = result[offset:end]
	}
	return result, nil
}

func containsStatus(statuses []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func matchesSearch(ticket domain.Ticket, search string) bool {
	for _, field := range []string{ticket.ProblemDescription, ticket.ApplianceModel, ticket.ApplianceType, ticket.ClientName} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

func (t *ticketTable) ListOpenStartedBefore(_ context.Context, cutoff time.Time) ([]domain.Ticket, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	day := domain.DateOf(cutoff)
	var result []domain.Ticket
	for _, row := range t.s.st.tickets {
		if row.Status == domain.StatusReady || !domain.DateOf(row.StartDate).Before(day) {
			continue
		}
		result = append(result, t.project(row))
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartDate.Equal(result[j].StartDate) {
			return result[i].StartDate.Before(result[j].StartDate)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (t *ticketTable) Delete(ctx context.Context, id int64) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, ok := t.s.st.tickets[id]; !ok {
		return repository.ErrNotFound
	}
	remember(ctx, &t.s.st, ticketsOf, id)
	delete(t.s.st.tickets, id)
	for cid, c := range t.s.st.comments {
		if c.TicketID == id {
			remember(ctx, &t.s.st, commentsOf, cid)
			delete(t.s.st.comments, cid)
		}
	}
	for key := range t.s.st.usage {
		if key.ticketID == id {
			remember(ctx, &t.s.st, usageOf, key)
			delete(t.s.st.usage, key)
		}
	}
	for hid, h := range t.s.st.history {
		if h.TicketID == id {
			remember(ctx, &t.s.st, historyOf, hid)
			delete(t.s.st.history, hid)
		}
	}
	return nil
}

type commentTable struct{ s *Store }

func (t *commentTable) Create(ctx context.Context, comment *domain.Comment) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, ok := t.s.st.tickets[comment.TicketID]; !ok {
		return fmt.Errorf("memstore: ticket %d does not exist", comment.TicketID)
	}
	if _, ok := t.s.st.users[comment.AuthorID]; !ok {
		return fmt.Errorf("memstore: author %d does not exist", comment.AuthorID)
	}
	comment.ID = t.s.nextID()
	comment.CreatedAt = t.s.now()
	remember(ctx, &t.s.st, commentsOf, comment.ID)
	t.s.st.comments[comment.ID] = *comment
	return nil
}

func (t *commentTable) ListByTicket(_ context.Context, ticketID int64, includePrivate bool) ([]domain.Comment, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	var result []domain.Comment
	for _, c := range t.s.st.comments {
		if c.TicketID != ticketID || (c.Private && !includePrivate) {
			continue
		}
		if author, ok := t.s.st.users[c.AuthorID]; ok {
			c.AuthorName = author.FullName
		}
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

type partTable struct{ s *Store }

func (t *partTable) Create(ctx context.Context, part *domain.Part) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, existing := range t.s.st.parts {
		if existing.VendorCode == part.VendorCode {
			return repository.ErrDuplicate
		}
	}
	part.ID = t.s.nextID()
	row := *part
	row.LastOrdered = copyTime(part.LastOrdered)
	remember(ctx, &t.s.st, partsOf, part.ID)
	t.s.st.parts[part.ID] = row
	return nil
}

func (t *partTable) GetByID(_ context.Context, id int64) (*domain.Part, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	row, ok := t.s.st.parts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	row.LastOrdered = copyTime(row.LastOrdered)
	return &row, nil
}

func (t *partTable) ListLowStock(_ context.Context) ([]domain.Part, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	var result []domain.Part
	for _, p := range t.s.st.parts {
		if p.IsLowStock() {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Quantity != result[j].Quantity {
			return result[i].Quantity < result[j].Quantity
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (t *partTable) AddUsage(ctx context.Context, usage *domain.PartUsage) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, ok := t.s.st.tickets[usage.TicketID]; !ok {
		return fmt.Errorf("memstore: ticket %d does not exist", usage.TicketID)
	}
	if _, ok := t.s.st.parts[usage.PartID]; !ok {
		return fmt.Errorf("memstore: part %d does not exist", usage.PartID)
	}
	key := partKey{ticketID: usage.TicketID, partID: usage.PartID}
	row, ok := t.s.st.usage[key]
	if ok {
		row.Quantity += usage.Quantity
	} else {
		row = usageRow{Quantity: usage.Quantity, UsedDate: domain.DateOf(usage.UsedDate)}
	}
	remember(ctx, &t.s.st, usageOf, key)
	t.s.st.usage[key] = row
	usage.Quantity = row.Quantity
	usage.UsedDate = row.UsedDate
	return nil
}

func (t *partTable) ListUsage(_ context.Context, ticketID int64) ([]domain.PartUsage, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	var result []domain.PartUsage
	for key, row := range t.s.st.usage {
		if key.ticketID != ticketID {
			continue
		}
		part := t.s.st.parts[key.partID]
		result = append(result, domain.PartUsage{
			TicketID:   key.ticketID,
			PartID:     key.partID,
			Quantity:   row.Quantity,
			UsedDate:   row.UsedDate,
			PartName:   part.Name,
			VendorCode: part.VendorCode,
			Price:      part.Price,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].PartName != result[j].PartName {
			return result[i].PartName < result[j].PartName
		}
		return result[i].PartID < result[j].PartID
	})
	return result, nil
}

type notificationTable struct{ s *Store }

func (t *notificationTable) Create(ctx context.Context, n *domain.Notification) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, ok := t.s.st.users[n.UserID]; !ok {
		return fmt.Errorf("memstore: user %d does not exist", n.UserID)
	}
	n.ID = t.s.nextID()
	n.CreatedAt = t.s.now()
	remember(ctx, &t.s.st, notificationsOf, n.ID)
	t.s.st.notifications[n.ID] = *n
	return nil
}

func (t *notificationTable) GetByID(_ context.Context, id int64) (*domain.Notification, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	row, ok := t.s.st.notifications[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &row, nil
}

func (t *notificationTable) MarkRead(ctx context.Context, id int64) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	row, ok := t.s.st.notifications[id]
	if !ok {
		return repository.ErrNotFound
	}
	row.Read = true
	remember(ctx, &t.s.st, notificationsOf, id)
	t.s.st.notifications[id] = row
	return nil
}

func (t *notificationTable) ListByUser(_ context.Context, userID int64, unreadOnly bool, limit int) ([]domain.Notification, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	var result []domain.Notification
	for _, n := range t.s.st.notifications {
		if n.UserID != userID || (unreadOnly && n.Read) {
			continue
		}
		result = append(result, n)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (t *notificationTable) CountUnread(_ context.Context, userID int64) (int, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	count := 0
	for _, n := range t.s.st.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

type historyTable struct{ s *Store }

func (t *historyTable) Create(ctx context.Context, h *domain.TicketHistory) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	h.ID = t.s.nextID()
	h.CreatedAt = t.s.now()
	row := *h
	row.ChangedByID = copyID(h.ChangedByID)
	row.OldValue = copyValues(h.OldValue)
	row.NewValue = copyValues(h.NewValue)
	remember(ctx, &t.s.st, historyOf, h.ID)
	t.s.st.history[h.ID] = row
	return nil
}

func (t *historyTable) ListByTicket(_ context.Context, ticketID int64) ([]domain.TicketHistory, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	var result []domain.TicketHistory
	for _, h := range t.s.st.history {
		if h.TicketID == ticketID {
			result = append(result, h)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}
