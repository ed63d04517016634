// Package config loads the gameplay rules for the shooter relay.
//
// The config package handles:
//   - Reading rules from RELAY_* environment variables
//   - Overlaying a JSON rules file on top of the environment
//   - Validating the resulting rule set
//
// Environment:
//
//	RELAY_SPAWN_EXTENT     half side of the square spawn area (default 50)
//	RELAY_MAX_HEALTH       starting and respawn health (default 100)
//	RELAY_DEFAULT_WEAPONS  comma separated starting loadout (default "pistol")
//	RELAY_GROUND_LEVEL     y coordinate of the ground (default 0)
//	RELAY_GROUND_CLAMP     keep reported positions above ground (default false)
//
// Rules File Format:
//
// A rules file is a JSON object using the same keys as engine.Rules. Keys
// missing from the file keep their environment or default value:
//
//	{
//	  "spawn_extent": 80,
//	  "default_weapons": ["pistol", "knife"]
//	}
//
// Usage:
//
//	rules, err := config.Resolve("rules.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//	eng, err := engine.NewEngine(rules)
package config
