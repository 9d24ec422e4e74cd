// Package store is the data-access layer: parameterized SQL over the shared
// pool, one repository per aggregate.
package store

import (
	"label-platform/internal/database"
	"label-platform/internal/models"
)

// Store bundles the repositories that share one pool.
type Store struct {
	DB *database.DB

	Users     *Users
	Artists   *Table[models.Artist]
	Posts     *Posts
	Videos    *Table[models.Video]
	Media     *Table[models.Media]
	Products  *Products
	Comments  *Table[models.Comment]
	Ratings   *Ratings
	Votes     *Votes
	Orders    *Orders
	Carts     *Carts
	Downloads *Downloads
}

func New(db *database.DB) *Store {
	return &Store{
		DB:        db,
		Users:     NewUsers(db),
		Artists:   NewTable[models.Artist](db, ArtistSpec),
		Posts:     NewPosts(db),
		Videos:    NewTable[models.Video](db, VideoSpec),
		Media:     NewTable[models.Media](db, MediaSpec),
		Products:  NewProducts(db),
		Comments:  NewTable[models.Comment](db, CommentSpec),
		Ratings:   NewRatings(db),
		Votes:     NewVotes(db),
		Orders:    NewOrders(db),
		Carts:     NewCarts(db),
		Downloads: NewDownloads(db),
	}
}
