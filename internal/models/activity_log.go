package models

import "time"

// Action is what the actor did.
type Action string

const (
	ActionLogin         Action = "LOGIN"
	ActionLogout        Action = "LOGOUT"
	ActionCreate        Action = "CREATE"
	ActionUpdate        Action = "UPDATE"
	ActionDelete        Action = "DELETE"
	ActionView          Action = "VIEW"
	ActionUpload        Action = "UPLOAD"
	ActionDownload      Action = "DOWNLOAD"
	ActionPayment       Action = "PAYMENT"
	ActionRegister      Action = "REGISTER"
	ActionPasswordReset Action = "PASSWORD_RESET"
	ActionProfileUpdate Action = "PROFILE_UPDATE"
	ActionAdmin         Action = "ADMIN_ACTION"
)

// EntityType is the kind of record an action touched.
type EntityType string

const (
	EntityUser         EntityType = "USER"
	EntityPost         EntityType = "POST"
	EntityPayment      EntityType = "PAYMENT"
	EntityGuidance     EntityType = "GUIDANCE"
	EntityFeedback     EntityType = "FEEDBACK"
	EntityNotification EntityType = "NOTIFICATION"
	EntityGovernment   EntityType = "GOVERNMENT"
	EntitySystem       EntityType = "SYSTEM"
)

// ActivityStatus is the outcome of an action.
type ActivityStatus string

const (
	StatusSuccess ActivityStatus = "SUCCESS"
	StatusFailure ActivityStatus = "FAILURE"
	StatusPending ActivityStatus = "PENDING"
)

var validActions = map[Action]bool{
	ActionLogin: true, ActionLogout: true, ActionCreate: true, ActionUpdate: true,
	ActionDelete: true, ActionView: true, ActionUpload: true, ActionDownload: true,
	ActionPayment: true, ActionRegister: true, ActionPasswordReset: true,
	ActionProfileUpdate: true, ActionAdmin: true,
}

var validEntities = map[EntityType]bool{
	EntityUser: true, EntityPost: true, EntityPayment: true, EntityGuidance: true,
	EntityFeedback: true, EntityNotification: true, EntityGovernment: true, EntitySystem: true,
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool { return validActions[a] }

// Valid reports whether e is a known entity type.
func (e EntityType) Valid() bool { return validEntities[e] }

// Valid reports whether s is a known status.
func (s ActivityStatus) Valid() bool {
	return s == StatusSuccess || s == StatusFailure || s == StatusPending
}

// ActivityLog is one audit record.
type ActivityLog struct {
	ID         string         `json:"_id" db:"id" bson:"_id"`
	UserID     *string        `json:"userId,omitempty" db:"user_id" bson:"userId,omitempty"`
	Action     Action         `json:"action" db:"action" bson:"action"`
	EntityType EntityType     `json:"entityType" db:"entity_type" bson:"entityType"`
	EntityID   *string        `json:"entityId,omitempty" db:"entity_id" bson:"entityId,omitempty"`
	IPAddress  string         `json:"ipAddress" db:"ip_address" bson:"ipAddress"`
	UserAgent  string         `json:"userAgent" db:"user_agent" bson:"userAgent"`
	Status     ActivityStatus `json:"status" db:"status" bson:"status"`
	Metadata   JSONMap        `json:"metadata" db:"metadata_json" bson:"metadata"`
	CreatedAt  time.Time      `json:"timestamp" db:"created_at" bson:"timestamp"`
}

// ActivityFilter narrows activity log queries.
type ActivityFilter struct {
	UserID     string
	Action     Action
	EntityType EntityType
	StartDate  *time.Time
	EndDate    *time.Time
	Page       int
	Limit      int
}

// Pagination describes a page of results.
type Pagination struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int64 `json:"pages"`
}

// ActivityStat aggregates logs per action and entity.
type ActivityStat struct {
	Action       Action                   `json:"action" bson:"action"`
	EntityType   EntityType               `json:"entityType" bson:"entityType"`
	Total        int64                    `json:"total" bson:"total"`
	ByStatus     map[ActivityStatus]int64 `json:"byStatus" bson:"byStatus"`
	LastActivity time.Time                `json:"lastActivity" bson:"lastActivity"`
}
