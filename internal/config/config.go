// Package config loads DataMesh's frozen runtime parameters: replication
// and quorum knobs, timeouts, and the handful of environment variables
// the specification says ConfigModel alone is allowed to read.
//
// Loading goes through viper so a config.toml on disk and environment
// overrides are merged in one pass; the result is copied into an
// unexported struct before Config is returned, so nothing downstream can
// mutate shared state after startup.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the frozen snapshot of runtime parameters. All fields are
// unexported; access only through the getters below, so no caller can
// take the address of a field and mutate it after Load returns.
type Config struct {
	dataDir string
	apiHost string
	apiPort int

	replicationFactor uint8
	writeQuorumBias   uint8 // m-share added on top of k; actual quorum computed per-plan
	overFetch         uint8

	tPut         time.Duration
	tGetTotal    time.Duration
	tPutTotal    time.Duration
	tCancel      time.Duration
	republishInt time.Duration
	recordTTL    time.Duration

	maxRecordBytes    int64
	kBucket           int
	blacklistThresh   float64
	cooldownPeriod    time.Duration
	bootstrapAddrs    []string
	shardRetryBudget  int
	shardRetryBaseDur time.Duration
}

// DataDir returns the per-node data directory root.
func (c *Config) DataDir() string { return c.dataDir }

// APIHost returns the bind host for the (external) HTTP/WS API.
func (c *Config) APIHost() string { return c.apiHost }

// APIPort returns the bind port for the (external) HTTP/WS API.
func (c *Config) APIPort() int { return c.apiPort }

// ReplicationFactor returns the number of DHT peers required to ack a
// shard PUT for that shard to count as placed.
func (c *Config) ReplicationFactor() uint8 { return c.replicationFactor }

// WriteQuorumBias returns the m-share added on top of a ShardPlan's
// default write_quorum (k + ceil(m/2)), letting an operator require more
// than the default majority of parity shards before a PUT commits.
func (c *Config) WriteQuorumBias() uint8 { return c.writeQuorumBias }

// OverFetch returns the number of extra concurrent GETs issued beyond k.
func (c *Config) OverFetch() uint8 { return c.overFetch }

// TPut is the per-shard PUT timeout.
func (c *Config) TPut() time.Duration { return c.tPut }

// TGetTotal is the overall GET deadline.
func (c *Config) TGetTotal() time.Duration { return c.tGetTotal }

// TPutTotal is the overall PUT deadline.
func (c *Config) TPutTotal() time.Duration { return c.tPutTotal }

// TCancel is the maximum time a cancel signal may take to release all
// pending request handles.
func (c *Config) TCancel() time.Duration { return c.tCancel }

// RepublishInterval is how often a stored record is re-pushed to its
// current closest peers.
func (c *Config) RepublishInterval() time.Duration { return c.republishInt }

// RecordTTL is how long a record survives without republication.
func (c *Config) RecordTTL() time.Duration { return c.recordTTL }

// MaxRecordBytes bounds the size of a single DHT record value.
func (c *Config) MaxRecordBytes() int64 { return c.maxRecordBytes }

// KBucket is the Kademlia routing-table bucket size.
func (c *Config) KBucket() int { return c.kBucket }

// BlacklistThreshold is the reputation floor below which NetworkActor
// refuses to dial a peer.
func (c *Config) BlacklistThreshold() float64 { return c.blacklistThresh }

// CooldownPeriod is how long a blacklisted peer stays un-dialable.
func (c *Config) CooldownPeriod() time.Duration { return c.cooldownPeriod }

// BootstrapAddrs returns the configured bootstrap multiaddresses.
func (c *Config) BootstrapAddrs() []string {
	out := make([]string, len(c.bootstrapAddrs))
	copy(out, c.bootstrapAddrs)
	return out
}

// ShardRetryBudget is the number of retries ShardRouter allows a
// transient per-shard DHT error before giving up on that shard.
func (c *Config) ShardRetryBudget() int { return c.shardRetryBudget }

// ShardRetryBaseDelay is the base exponential-backoff delay for shard
// retries (multiplied by four per attempt: 200ms, 800ms by default).
func (c *Config) ShardRetryBaseDelay() time.Duration { return c.shardRetryBaseDur }

func defaults(v *viper.Viper) {
	v.SetDefault("data_dir", "")
	v.SetDefault("api_host", "127.0.0.1")
	v.SetDefault("api_port", 7777)

	v.SetDefault("replication_factor", 3)
	v.SetDefault("write_quorum_bias", 0)
	v.SetDefault("over_fetch", 2)

	v.SetDefault("t_put", "30s")
	v.SetDefault("t_get_total", "45s")
	v.SetDefault("t_put_total", "60s")
	v.SetDefault("t_cancel", "1s")
	v.SetDefault("republish_interval", "12h")
	v.SetDefault("record_ttl", "36h")

	v.SetDefault("max_record_bytes", 1<<20)
	v.SetDefault("k_bucket", 20)
	v.SetDefault("blacklist_threshold", 0.2)
	v.SetDefault("cooldown_period", "5m")
	v.SetDefault("bootstrap_addrs", []string{})

	v.SetDefault("shard_retry_budget", 2)
	v.SetDefault("shard_retry_base_delay", "200ms")
}

// Load reads config.toml from dataDir (if present), merges in the
// DATAMESH_* environment variables, and returns a frozen Config.
// A missing config.toml is not an error; defaults apply.
func Load(dataDir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	if dataDir != "" {
		v.AddConfigPath(dataDir)
	}

	defaults(v)

	v.SetEnvPrefix("DATAMESH")
	v.AutomaticEnv()
	_ = v.BindEnv("data_dir", "DATAMESH_DATA_DIR")
	_ = v.BindEnv("api_host", "DATAMESH_API_HOST")
	_ = v.BindEnv("api_port", "DATAMESH_API_PORT")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	c := &Config{
		dataDir:           v.GetString("data_dir"),
		apiHost:           v.GetString("api_host"),
		apiPort:           v.GetInt("api_port"),
		replicationFactor: uint8(v.GetUint("replication_factor")),
		writeQuorumBias:   uint8(v.GetUint("write_quorum_bias")),
		overFetch:         uint8(v.GetUint("over_fetch")),
		tPut:              v.GetDuration("t_put"),
		tGetTotal:         v.GetDuration("t_get_total"),
		tPutTotal:         v.GetDuration("t_put_total"),
		tCancel:           v.GetDuration("t_cancel"),
		republishInt:      v.GetDuration("republish_interval"),
		recordTTL:         v.GetDuration("record_ttl"),
		maxRecordBytes:    v.GetInt64("max_record_bytes"),
		kBucket:           v.GetInt("k_bucket"),
		blacklistThresh:   v.GetFloat64("blacklist_threshold"),
		cooldownPeriod:    v.GetDuration("cooldown_period"),
		bootstrapAddrs:    v.GetStringSlice("bootstrap_addrs"),
		shardRetryBudget:  v.GetInt("shard_retry_budget"),
		shardRetryBaseDur: v.GetDuration("shard_retry_base_delay"),
	}

	if dataDir != "" {
		c.dataDir = dataDir
	}

	return c, nil
}
