package validators

import "go.mongodb.org/mongo-driver/bson"

var OrderValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"code",
			"status",
			"quantity",
			"expires_at",
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

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"created",
					"awaiting_deposit",
					"paid",
					"canceled",
					"expired",
				},
			},

			"quantity": bson.M{
				"bsonType": "int",
				"minimum":  1,
			},

			"expires_at": bson.M{
				"bsonType": "date",
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
