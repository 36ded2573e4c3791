package model

import "fmt"

// ActorKind discriminates who drove a lifecycle transition. Every
// transition call carries an Actor and stores it verbatim in history.
type ActorKind string

const (
	ActorSystem   ActorKind = "system"
	ActorAdmin    ActorKind = "admin"
	ActorCustomer ActorKind = "customer"
)

type Actor struct {
	Kind ActorKind `json:"kind" bson:"kind" validate:"required,oneof=system admin customer"`
	// ID is the admin/customer identity, or the job name for system actors.
	ID string `json:"id,omitempty" bson:"id,omitempty"`
}

func SystemActor(job string) Actor {
	return Actor{Kind: ActorSystem, ID: job}
}

func AdminActor(id string) Actor {
	return Actor{Kind: ActorAdmin, ID: id}
}

func CustomerActor(id string) Actor {
	return Actor{Kind: ActorCustomer, ID: id}
}

func (a Actor) Valid() bool {
	switch a.Kind {
	case ActorSystem:
		return true
	case ActorAdmin, ActorCustomer:
		return a.ID != ""
	default:
		return false
	}
}

func (a Actor) String() string {
	if a.ID == "" {
		return string(a.Kind)
	}
	return fmt.Sprintf("%s:%s", a.Kind, a.ID)
}
