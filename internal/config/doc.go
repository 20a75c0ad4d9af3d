// Package config loads settings for the composer CLI.
//
// The configuration is stored in compose.json in the working directory or
// one of its parents. Every field is optional; flags override it.
//
// # Configuration File Structure
//
//	{
//	  "devMode": true,
//	  "maxRendersPerFlush": 100,
//	  "log": {
//	    "level": "info",
//	    "format": "text"
//	  },
//	  "bench": {
//	    "widths": [1, 10, 100],
//	    "heights": [1, 10, 100],
//	    "iterations": 100
//	  },
//	  "demo": {
//	    "duration": "5s",
//	    "interval": "100ms",
//	    "depth": 5
//	  },
//	  "devtools": {
//	    "enabled": true,
//	    "addr": "localhost:7070"
//	  },
//	  "tracing": {
//	    "exporter": "stdout",
//	    "serviceName": "composer",
//	    "samplingRate": 1
//	  },
//	  "metrics": {
//	    "namespace": "compose"
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.LoadFromWorkingDir()
//	if err != nil {
//	    cfg = config.New()
//	}
//	d, _ := cfg.DemoDuration()
package config
