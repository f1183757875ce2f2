package model

// GeneratedPost is the title and description written by the language model.
type GeneratedPost struct {
	Name        string `json:"name" validate:"required,notblank"`
	Description string `json:"description" validate:"required,notblank"`
}

// ActivityUpdateFromPost sets exactly the name and description of an activity.
func ActivityUpdateFromPost(p GeneratedPost) ActivityUpdate {
	var u ActivityUpdate
	u.SetName(p.Name).SetDescription(p.Description)
	return u
}
