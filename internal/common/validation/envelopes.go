package validation

// Envelope schemas describe the job data of each channel queue. Producers
// check a job against them before enqueueing it, and workers check it
// again when they claim it.
var (
	EmailEnvelope    = MustCompileSchema(emailEnvelopeJSON)
	TelegramEnvelope = MustCompileSchema(telegramEnvelopeJSON)
	SMSEnvelope      = MustCompileSchema(smsEnvelopeJSON)
)

// EnvelopeSchema returns the schema for a channel name, nil if unknown.
func EnvelopeSchema(channel string) *Schema {
	switch channel {
	case "email":
		return EmailEnvelope
	case "telegram":
		return TelegramEnvelope
	case "sms":
		return SMSEnvelope
	}
	return nil
}

const emailEnvelopeJSON = `{
  "type": "object",
  "required": ["jobId", "type", "payload"],
  "properties": {
    "jobId": {"type": "string", "minLength": 1},
    "type": {"enum": ["email"]},
    "payload": {
      "type": "object",
      "required": ["message", "options"],
      "properties": {
        "message": {"type": "string"},
        "options": {
          "type": "object",
          "required": ["to", "subject"],
          "properties": {
            "to": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
            "cc": {"type": "array", "items": {"type": "string"}},
            "bcc": {"type": "array", "items": {"type": "string"}},
            "from": {"type": "string"},
            "replyTo": {"type": "string"},
            "subject": {"type": "string", "minLength": 1, "maxLength": 998},
            "text": {"type": "string"},
            "template": {
              "type": "object",
              "required": ["name"],
              "properties": {
                "name": {"type": "string", "minLength": 1},
                "data": {"type": "object"}
              }
            },
            "attachments": {
              "type": "array",
              "items": {
                "type": "object",
                "required": ["filename", "content"],
                "properties": {
                  "filename": {"type": "string", "minLength": 1},
                  "contentType": {"type": "string"},
                  "content": {"type": "string"}
                }
              }
            },
            "tag": {"type": "string"},
            "priority": {"type": "string"},
            "category": {"type": "string"}
          }
        }
      }
    }
  }
}`

const telegramEnvelopeJSON = `{
  "type": "object",
  "required": ["jobId", "type", "payload"],
  "properties": {
    "jobId": {"type": "string", "minLength": 1},
    "type": {"enum": ["telegram"]},
    "payload": {
      "type": "object",
      "required": ["message", "options"],
      "properties": {
        "message": {"type": "string", "minLength": 1, "maxLength": 4096},
        "options": {
          "type": "object",
          "required": ["recipientId"],
          "properties": {
            "recipientId": {"type": "string"},
            "parseMode": {"type": "string"},
            "replyToMessageId": {"type": "integer"},
            "disableNotification": {"type": "boolean"},
            "extra": {"type": "object"},
            "priority": {"type": "string"},
            "category": {"type": "string"}
          }
        }
      }
    }
  }
}`

const smsEnvelopeJSON = `{
  "type": "object",
  "required": ["jobId", "type", "payload"],
  "properties": {
    "jobId": {"type": "string", "minLength": 1},
    "type": {"enum": ["sms"]},
    "payload": {
      "type": "object",
      "required": ["message", "options"],
      "properties": {
        "message": {"type": "string", "minLength": 1},
        "options": {
          "type": "object",
          "required": ["phoneNumber"],
          "properties": {
            "phoneNumber": {"type": "string"},
            "senderId": {"type": "string"},
            "smsType": {"enum": ["Transactional", "Promotional"]},
            "priority": {"type": "string"},
            "category": {"type": "string"}
          }
        }
      }
    }
  }
}`
