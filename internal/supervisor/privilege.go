package supervisor

import (
	"fmt"
	"os/user"
	"strconv"
	"syscall"
)

// dropPrivileges switches the process to username (plus its supplementary
// groups, or group if given) after the listening socket is already bound
// (spec §4.6 "standalone": "optionally drop privileges to the named user
// plus its supplementary groups"). A blank username is a no-op: saned
// keeps running as whatever it was started as.
//
// No example in this tree drops privileges; the pattern is built directly
// against syscall.Setgroups/Setgid/Setuid and os/user, the standard way to
// do it in Go (see DESIGN.md for the justification).
func dropPrivileges(username, groupname string) error {
	if username == "" {
		return nil
	}

	u, err := user.Lookup(username)
	if err != nil {
		return fmt.Errorf("looking up user %q: %w", username, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return fmt.Errorf("parsing uid for %q: %w", username, err)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return fmt.Errorf("parsing gid for %q: %w", username, err)
	}
	if groupname != "" {
		g, err := user.LookupGroup(groupname)
		if err != nil {
			return fmt.Errorf("looking up group %q: %w", groupname, err)
		}
		if gid, err = strconv.Atoi(g.Gid); err != nil {
			return fmt.Errorf("parsing gid for group %q: %w", groupname, err)
		}
	}

	if err := setSupplementaryGroups(u); err != nil {
		return err
	}
	if err := syscall.Setgid(gid); err != nil {
		return fmt.Errorf("setgid(%d): %w", gid, err)
	}
	if err := syscall.Setuid(uid); err != nil {
		return fmt.Errorf("setuid(%d): %w", uid, err)
	}
	return nil
}

// setSupplementaryGroups installs u's own group membership before the
// primary-group switch in dropPrivileges, so the process retains exactly
// the groups the target account is a member of rather than whatever groups
// it inherited from its caller (spec §4.6: "plus its supplementary
// groups").
func setSupplementaryGroups(u *user.User) error {
	ids, err := u.GroupIds()
	if err != nil {
		return fmt.Errorf("listing groups for %q: %w", u.Username, err)
	}
	gids := make([]int, 0, len(ids))
	for _, id := range ids {
		n, err := strconv.Atoi(id)
		if err != nil {
			continue
		}
		gids = append(gids, n)
	}
	if len(gids) == 0 {
		return nil
	}
	if err := syscall.Setgroups(gids); err != nil {
		return fmt.Errorf("setgroups(%v): %w", gids, err)
	}
	return nil
}
