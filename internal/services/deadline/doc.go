// Package deadline submits publish jobs to the render farm webservice.
// The JobInfo/PluginInfo payload key names are the farm protocol contract;
// transport failures are deliberately left to propagate because a failed
// submission needs operator intervention, not a retry.
package deadline
