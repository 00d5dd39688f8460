// Package loader runs the plugin startup pipeline and exposes uninstall and
// cancel-uninstall on the loaded set.
//
// Load is synchronous and runs once per process:
//
//  1. delete archives whose uninstall was requested before the restart
//  2. read the staged root, skipping malformed archives
//  3. read the installed roots; malformed archives abort the load
//  4. reject staged archives that break the compatibility policy
//  5. promote staged archives into the external root
//  6. apply the compatibility policy to the merged set
//  7. resolve dependencies, skipping unresolvable units
//  8. explode archives, one dependency level at a time
//  9. instantiate units in load order, bases before extensions
//  10. deploy artifacts and their compressed siblings
//  11. register and publish, then evaluate the risk consent
//
// Fatal failures come back as one consolidated error; see failure.UserMessage.
package loader
