// Package config loads atomctl.yaml.
//
// Every section is optional; missing values take the defaults from New.
//
//	log:
//	  level: debug        # debug, info, warn, error
//	  format: json        # text, json
//	metrics:
//	  namespace: atom
//	  subsystem: registry
//	registry:
//	  idleTimeout: 1s     # how long unobserved atoms are kept
//	serve:
//	  addr: 127.0.0.1:7070
//	  readTimeout: 10s
//	snapshot:
//	  dir: ./snapshots    # or s3, not both
//	  s3:
//	    bucket: atom-snapshots
//	    prefix: dev/
//	    region: eu-west-1
//	    endpoint: http://localhost:9000
//	    pathStyle: true
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    return err
//	}
//	logger := logging.New(cfg.Logging(os.Stderr))
package config
