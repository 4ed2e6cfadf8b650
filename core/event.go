package core

// Triggers are the event names webhooks can subscribe to.
const (
	TriggerOrgCreated      = "org.created"
	TriggerOrgUpdated      = "org.updated"
	TriggerOrgDeleted      = "org.deleted"
	TriggerProjectCreated  = "project.created"
	TriggerProjectUpdated  = "project.updated"
	TriggerProjectDeleted  = "project.deleted"
	TriggerBranchCreated   = "branch.created"
	TriggerBranchUpdated   = "branch.updated"
	TriggerBranchDeleted   = "branch.deleted"
	TriggerElementCreated  = "element.created"
	TriggerElementUpdated  = "element.updated"
	TriggerElementDeleted  = "element.deleted"
	TriggerElementArchived = "element.archived"
	TriggerUserCreated     = "user.created"
	TriggerUserDeleted     = "user.deleted"
)

// An Event describes a successful mutation. OrgID, ProjectID and BranchID
// locate the mutation in the resource hierarchy; outer ids are set whenever
// an inner id is set, zero means out of scope.
type Event struct {
	Trigger   string
	OrgID     int
	ProjectID int
	BranchID  int
	Payload   map[string]interface{}
}

// An Observer receives events after the mutation has been committed.
// Notify must not block.
type Observer interface {
	Notify(Event)
}

func (c *CoreDB) emit(e Event) {
	if c.Observer != nil {
		c.Observer.Notify(e)
	}
}

// Emit re-enters an event into the observer chain. Incoming webhooks use it
// to fire their configured triggers.
func (c *CoreDB) Emit(e Event) {
	c.emit(e)
}
