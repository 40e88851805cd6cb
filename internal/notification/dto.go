package notification

// NotificationResponse is the JSON shape of a notification, shared by the
// REST API and the live stream
type NotificationResponse struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	Type         Kind   `json:"type"`
	Title        string `json:"title"`
	Message      string `json:"message"`
	IsRead       bool   `json:"is_read"`
	PaymentMonth *int   `json:"payment_month,omitempty"`
	PaymentYear  *int   `json:"payment_year,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// UnreadCountResponse carries the number of unread notifications
type UnreadCountResponse struct {
	Count int `json:"count"`
}

// ToResponse converts a Notification to a NotificationResponse
func (n *Notification) ToResponse() *NotificationResponse {
	return &NotificationResponse{
		ID:           n.ID.String(),
		UserID:       n.UserID.String(),
		Type:         n.Kind,
		Title:        n.Title,
		Message:      n.Message,
		IsRead:       n.IsRead,
		PaymentMonth: n.PaymentMonth,
		PaymentYear:  n.PaymentYear,
		CreatedAt:    n.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

func toResponses(notifications []*Notification) []*NotificationResponse {
	out := make([]*NotificationResponse, len(notifications))
	for i, n := range notifications {
		out[i] = n.ToResponse()
	}
	return out
}
