package models

import "time"

type Image struct {
	ID          string
	Prompt      string
	Model       string
	Width       int
	Height      int
	Seed        int64
	LikedBy     IDSet
	DislikedBy  IDSet
	CreatedBy   *string
	CreatedAt   time.Time
	ContentType string
	Buffer      []byte
}

// Reactors returns the set of users holding reaction kind k on the image.
func (i *Image) Reactors(k ReactionKind) IDSet {
	if k == ReactionLike {
		if i.LikedBy == nil {
			i.LikedBy = IDSet{}
		}
		return i.LikedBy
	}
	if i.DislikedBy == nil {
		i.DislikedBy = IDSet{}
	}
	return i.DislikedBy
}

// StateOf reports the reaction userID holds on the image. A user present in
// both sets is reported as liked; callers that care about that breach check
// Conflicts first.
func (i Image) StateOf(userID string) ReactionState {
	switch {
	case i.LikedBy.Has(userID):
		return ReactionLiked
	case i.DislikedBy.Has(userID):
		return ReactionDisliked
	}
	return ReactionNone
}

// Conflicts lists users present in both LikedBy and DislikedBy.
func (i Image) Conflicts() []string {
	return i.LikedBy.Intersect(i.DislikedBy)
}

// Popularity is derived on every read and never stored.
func (i Image) Popularity() int {
	return i.LikedBy.Len() - i.DislikedBy.Len()
}

func (i Image) Info() ImageInfo {
	return ImageInfo{
		ID:         i.ID,
		Prompt:     i.Prompt,
		Model:      i.Model,
		Width:      i.Width,
		Height:     i.Height,
		Seed:       i.Seed,
		LikedBy:    i.LikedBy.Slice(),
		DislikedBy: i.DislikedBy.Slice(),
		CreatedBy:  i.CreatedBy,
		CreatedAt:  i.CreatedAt,
		Popularity: i.Popularity(),
	}
}

// ImageInfo is the listing projection of an Image: no buffer, popularity
// computed at read time.
type ImageInfo struct {
	ID         string    `json:"id"`
	Prompt     string    `json:"prompt"`
	Model      string    `json:"model"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Seed       int64     `json:"seed"`
	LikedBy    []string  `json:"likedBy"`
	DislikedBy []string  `json:"dislikedBy"`
	CreatedBy  *string   `json:"createdBy"`
	CreatedAt  time.Time `json:"createdAt"`
	Popularity int       `json:"popularity"`
}

// SetState moves userID into the sets matching s, clearing the other kind.
func (i *Image) SetState(userID string, s ReactionState) {
	i.Reactors(ReactionLike).Remove(userID)
	i.Reactors(ReactionDislike).Remove(userID)
	switch s {
	case ReactionLiked:
		i.LikedBy.Add(userID)
	case ReactionDisliked:
		i.DislikedBy.Add(userID)
	}
}
