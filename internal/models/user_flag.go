package models

import "time"

// UserFlag counts a user's rejected uploads.
type UserFlag struct {
	UserID       string    `json:"user_id" bson:"user_id" dynamodbav:"user_id"`
	Strikes      int       `json:"strikes" bson:"strikes" dynamodbav:"strikes"`
	LastStrikeAt time.Time `json:"last_strike_at" bson:"last_strike_at" dynamodbav:"last_strike_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at" dynamodbav:"updated_at"`
}
