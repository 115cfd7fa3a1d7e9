package outbox

const activityReminderSchema = `{
  "type": "object",
  "title": "ActivityReminder",
  "properties": {
    "user_id": {"type": "string"},
    "activity": {
      "type": "object",
      "properties": {
        "activity_id": {"type": "string"},
        "title": {"type": "string"},
        "starts_at": {"type": "string", "format": "date-time"},
        "location": {"type": "string"}
      },
      "required": ["activity_id", "title", "starts_at"],
      "additionalProperties": false
    },
    "send_at": {"type": "string", "format": "date-time"}
  },
  "required": ["user_id", "activity", "send_at"],
  "additionalProperties": false
}`

const activityNotificationSchema = `{
  "type": "object",
  "title": "ActivityNotification",
  "properties": {
    "activity_id": {"type": "string"},
    "user_id": {"type": "string"},
    "status": {"type": "string"},
    "message": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "user_id", "status", "message", "occurred_at"],
  "additionalProperties": false
}`
