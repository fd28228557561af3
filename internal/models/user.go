package models

import "time"

type User struct {
	ID             string
	FullName       string
	ImageURL       string
	Username       string
	Images         []string
	LikedImages    IDSet
	DislikedImages IDSet
	CreatedAt      time.Time
}

// Reacted returns the set of images the user holds reaction kind k on.
func (u *User) Reacted(k ReactionKind) IDSet {
	if k == ReactionLike {
		if u.LikedImages == nil {
			u.LikedImages = IDSet{}
		}
		return u.LikedImages
	}
	if u.DislikedImages == nil {
		u.DislikedImages = IDSet{}
	}
	return u.DislikedImages
}

func (u User) StateOf(imageID string) ReactionState {
	switch {
	case u.LikedImages.Has(imageID):
		return ReactionLiked
	case u.DislikedImages.Has(imageID):
		return ReactionDisliked
	}
	return ReactionNone
}

// AppendImage records a created image once, keeping creation order.
func (u *User) AppendImage(imageID string) {
	for _, id := range u.Images {
		if id == imageID {
			return
		}
	}
	u.Images = append(u.Images, imageID)
}

func (u *User) SetState(imageID string, s ReactionState) {
	u.Reacted(ReactionLike).Remove(imageID)
	u.Reacted(ReactionDislike).Remove(imageID)
	switch s {
	case ReactionLiked:
		u.LikedImages.Add(imageID)
	case ReactionDisliked:
		u.DislikedImages.Add(imageID)
	}
}
