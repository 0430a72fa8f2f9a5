// Copyright (c) 2024 Elisamuel Resto Donate <sam@samresto.dev>
// SPDX-License-Identifier: MIT

// Package config implements dynamic config file monitoring and reloading.
package config

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ConfigManager watches the config file for changes and notifies the
// caller of what changed.
type ConfigManager struct {
	configPath string
	cfg        *Config
	mu         sync.RWMutex
	watcher    *fsnotify.Watcher
	done       chan bool
	onReload   func(*Config, Changes) error
}

// Changes describes what part of the config changed between reloads.
type Changes struct {
	ServerChanged   bool // Server config (bind, timeout) changed
	ResolverChanged bool // Root hints file, ACL file, or transport changed
	ACLRulesChanged bool // Inline ACL rules changed
	MetricsChanged  bool
}

// NewConfigManager creates a new config manager.
func NewConfigManager(configPath string, onReload func(*Config, Changes) error) (*ConfigManager, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	cm := &ConfigManager{
		configPath: configPath,
		cfg:        cfg,
		done:       make(chan bool),
		onReload:   onReload,
	}

	return cm, nil
}

// Start begins watching the config file for changes.
func (cm *ConfigManager) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	cm.watcher = watcher

	if err := watcher.Add(cm.configPath); err != nil {
		return fmt.Errorf("failed to watch config file: %w", err)
	}

	log.Printf("watching config file: %s", cm.configPath)

	go cm.watchLoop()
	return nil
}

// Stop stops watching the config file.
func (cm *ConfigManager) Stop() {
	if cm.watcher != nil {
		cm.watcher.Close()
	}
	cm.done <- true
}

// Get returns current config (thread-safe).
func (cm *ConfigManager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.cfg
}

// watchLoop monitors config file changes with debouncing.
func (cm *ConfigManager) watchLoop() {
	var timer *time.Timer

	for {
		select {
		case event, ok := <-cm.watcher.Events:
			if !ok {
				return
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				log.Printf("config file changed: %s", event.Name)

				if timer != nil {
					timer.Stop()
				}

				timer = time.AfterFunc(time.Duration(cm.cfg.Server.ReloadDebounce)*time.Second, func() {
					cm.reloadConfig()
				})
			}

		case err, ok := <-cm.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("config watcher error: %v", err)

		case <-cm.done:
			return
		}
	}
}

// reloadConfig reloads the config file and applies changes.
func (cm *ConfigManager) reloadConfig() {
	newCfg, err := LoadConfig(cm.configPath)
	if err != nil {
		log.Printf("failed to reload config: %v", err)
		return
	}

	cm.mu.Lock()
	oldCfg := cm.cfg
	cm.cfg = newCfg
	cm.mu.Unlock()

	changes := detectChanges(oldCfg, newCfg)

	if cm.onReload != nil {
		startTime := time.Now()
		if err := cm.onReload(newCfg, changes); err != nil {
			log.Printf("failed to apply config changes: %v", err)
			cm.mu.Lock()
			cm.cfg = oldCfg
			cm.mu.Unlock()
			return
		}
		duration := time.Since(startTime)
		log.Printf("config reloaded successfully in %v", duration)
	}
}

// detectChanges compares old and new configs to determine what changed.
func detectChanges(oldCfg, newCfg *Config) Changes {
	changes := Changes{}

	if oldCfg.Server.Bind != newCfg.Server.Bind || oldCfg.Server.Timeout != newCfg.Server.Timeout {
		changes.ServerChanged = true
		log.Printf("server config changed: bind=%s, timeout=%d", newCfg.Server.Bind, newCfg.Server.Timeout)
	}

	if oldCfg.Resolver != newCfg.Resolver {
		changes.ResolverChanged = true
		log.Printf("resolver config changed: root_hints_file=%s, acl_file=%s, transport=%s",
			newCfg.Resolver.RootHintsFile, newCfg.Resolver.ACLFile, newCfg.Resolver.Transport)
	}

	if !stringSlicesEqual(oldCfg.ACLRule.Allow, newCfg.ACLRule.Allow) || !stringSlicesEqual(oldCfg.ACLRule.Deny, newCfg.ACLRule.Deny) {
		changes.ACLRulesChanged = true
		log.Printf("inline ACL rules changed")
	}

	if oldCfg.Metrics != newCfg.Metrics {
		changes.MetricsChanged = true
	}

	return changes
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
