package users

import "context"

type StoreAPI interface {
	Get(ctx context.Context, id string) (User, error)
	List(ctx context.Context, nameQuery string) ([]User, error)
	ListTeamLeads(ctx context.Context) ([]TeamLead, error)
	Update(ctx context.Context, id string, patch Patch) (User, error)
	SetTeamLead(ctx context.Context, id string, isTeamLead bool) (User, error)
	Delete(ctx context.Context, id string) error
}
