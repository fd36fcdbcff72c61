package dto

// AcknowledgeAlertsRequest is the body of POST /v1/alerts/acknowledge.
type AcknowledgeAlertsRequest struct {
	AlertIDs []string `json:"alert_ids" validate:"required,min=1,dive,uuid"`
}

type AcknowledgeAlertsResponse struct {
	Acknowledged int64 `json:"acknowledged"`
}

type AlertProductBrief struct {
	ID           string `json:"id"`
	SKU          string `json:"sku"`
	Name         string `json:"name"`
	Stock        *int   `json:"stock"`
	ReorderLevel *int   `json:"reorder_level"`
}

type AlertResponse struct {
	ID           string            `json:"id"`
	Product      AlertProductBrief `json:"product"`
	Severity     string            `json:"severity"`
	Message      string            `json:"message"`
	TriggeredAt  string            `json:"triggered_at"`
	Acknowledged bool              `json:"acknowledged"`
	DaysLowStock int               `json:"days_low_stock"`
}

type AlertListResponse struct {
	Alerts        []AlertResponse `json:"alerts"`
	UnreadCount   int             `json:"unread_count"`
	CriticalCount int             `json:"critical_count"`
}

type AlertSettingsResponse struct {
	NotifyEmail bool   `json:"notify_email"`
	NotifyInApp bool   `json:"notify_inapp"`
	Email       string `json:"email"`
}

// UpdateAlertSettingsRequest is the body of PUT /v1/alerts/settings. Omitted
// fields keep their current value; an empty email falls back to the server
// default recipient.
type UpdateAlertSettingsRequest struct {
	NotifyEmail *bool   `json:"notify_email"`
	NotifyInApp *bool   `json:"notify_inapp"`
	Email       *string `json:"email" validate:"omitempty,max=254"`
}
