package model

import "time"

// Plan is the submission-ready result of expanding an experiment file
type Plan struct {
	APIVersion string    `json:"apiVersion" yaml:"apiVersion"`
	Kind       string    `json:"kind" yaml:"kind"`
	Metadata   Metadata  `json:"metadata" yaml:"metadata"`
	Runs       []PlanRun `json:"runs" yaml:"runs"`
}

// Metadata describes where and when a plan was built
type Metadata struct {
	ConfigFile  string    `json:"configFile,omitempty" yaml:"configFile,omitempty"`
	RemoteDir   string    `json:"remoteDir" yaml:"remoteDir"`
	GeneratedAt time.Time `json:"generatedAt" yaml:"generatedAt"`
	GitCommit   string    `json:"gitCommit,omitempty" yaml:"gitCommit,omitempty"`
	GitBranch   string    `json:"gitBranch,omitempty" yaml:"gitBranch,omitempty"`
	GitDirty    bool      `json:"gitDirty,omitempty" yaml:"gitDirty,omitempty"`
}

// PlanRun is one run ready for submission
type PlanRun struct {
	Index      int    `json:"index" yaml:"index"` // position in expansion order
	Name       string `json:"name" yaml:"name"`
	Params     Params `json:"params" yaml:"params"`
	RunDir     string `json:"runDir" yaml:"runDir"`
	LogFile    string `json:"logFile" yaml:"logFile"`
	JobScript  string `json:"jobScript" yaml:"jobScript"` // remote path of the script
	Directives string `json:"directives" yaml:"directives"`
	Command    string `json:"command" yaml:"command"`
	Script     string `json:"script" yaml:"script"` // rendered script content
	Submit     string `json:"submit" yaml:"submit"` // rendered submit command
}
