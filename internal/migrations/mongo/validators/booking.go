package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"code",
			"service_id",
			"start_at",
			"end_at",
			"status",
			"policy",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},

			"code": bson.M{
				"bsonType":  "string",
				"minLength": 5,
				"maxLength": 32,
			},

			"service_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"customer_id": bson.M{
				"bsonType": "string",
			},

			"start_at": bson.M{
				"bsonType": "date",
			},

			"end_at": bson.M{
				"bsonType": "date",
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"requested",
					"confirmed",
					"completed",
					"canceled",
					"no_show",
				},
			},

			"policy": bson.M{
				"bsonType": "object",
				"required": []string{
					"cancel_before_hours",
					"change_before_hours",
					"no_show_after_min",
				},
			},

			"reschedule_of": bson.M{
				"bsonType": "string",
			},

			"history": bson.M{
				"bsonType": "array",
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
