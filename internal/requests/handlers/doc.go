// Package handlers contains the request handlers built into the agent:
// ping, restartModule and getModules.
package handlers
