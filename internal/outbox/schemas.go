package outbox

const activityRecordedSchema = `{
  "type": "object",
  "title": "ActivityRecorded",
  "properties": {
    "activity_id": {"type": "string"},
    "user_id": {"type": "string"},
    "category": {"type": "string"},
    "activity_type": {"type": "string"},
    "quantity": {"type": "number"},
    "carbon_impact": {"type": "number"},
    "recorded_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "user_id", "category", "activity_type", "quantity", "carbon_impact", "recorded_at"],
  "additionalProperties": false
}`

const achievementUnlockedSchema = `{
  "type": "object",
  "title": "AchievementUnlocked",
  "properties": {
    "user_id": {"type": "string"},
    "achievement_id": {"type": "string"},
    "name": {"type": "string"},
    "carbon_required": {"type": "number"},
    "unlocked_at": {"type": "string", "format": "date-time"}
  },
  "required": ["user_id", "achievement_id", "name", "carbon_required", "unlocked_at"],
  "additionalProperties": false
}`

const levelChangedSchema = `{
  "type": "object",
  "title": "LevelChanged",
  "properties": {
    "user_id": {"type": "string"},
    "level": {"type": "integer"},
    "previous_level": {"type": "integer"},
    "total_carbon_saved": {"type": "number"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["user_id", "level", "previous_level", "total_carbon_saved", "occurred_at"],
  "additionalProperties": false
}`
