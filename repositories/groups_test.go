package repositories

import (
	"testing"

	"campushub/domain"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestGroupMembership_Lifecycle(t *testing.T) {
	req := require.New(t)
	repository := NewGroupRepository(openTestDB(t))

	// Given a group created by alice
	group, err := repository.CreateGroup("algorithms study group", "alice")
	req.NoError(err)
	req.Equal([]string{"alice"}, group.Members)

	// When bob joins
	req.NoError(repository.AddMember(group.ID, "bob"))

	isMember, err := repository.IsGroupMember(group.ID, "bob")
	req.NoError(err)
	req.True(isMember)

	refs, err := repository.FindGroupsByMember("bob")
	req.NoError(err)
	req.Equal([]domain.GroupRef{{ID: group.ID, Name: group.Name}}, refs)

	// When bob is removed, both the document and the index drop him
	req.NoError(repository.RemoveMember(group.ID, "bob"))

	isMember, err = repository.IsGroupMember(group.ID, "bob")
	req.NoError(err)
	req.False(isMember)

	refs, err = repository.FindGroupsByMember("bob")
	req.NoError(err)
	req.Empty(refs)

	stored, err := repository.GetGroup(group.ID)
	req.NoError(err)
	req.Equal([]string{"alice"}, stored.Members)
}

func TestAddMember_Idempotent(t *testing.T) {
	req := require.New(t)
	repository := NewGroupRepository(openTestDB(t))

	group, err := repository.CreateGroup("linear algebra", "alice")
	req.NoError(err)

	req.NoError(repository.AddMember(group.ID, "bob"))
	req.NoError(repository.AddMember(group.ID, "bob"))

	stored, err := repository.GetGroup(group.ID)
	req.NoError(err)
	req.Equal([]string{"alice", "bob"}, stored.Members)
}

func TestFindGroupsByMember_Multiple(t *testing.T) {
	req := require.New(t)
	repository := NewGroupRepository(openTestDB(t))

	g1, err := repository.CreateGroup("compilers", "alice")
	req.NoError(err)
	g2, err := repository.CreateGroup("databases", "bob")
	req.NoError(err)
	req.NoError(repository.AddMember(g2.ID, "alice"))

	refs, err := repository.FindGroupsByMember("alice")
	req.NoError(err)
	req.ElementsMatch([]string{g1.ID, g2.ID}, lo.Map(refs, func(r domain.GroupRef, _ int) string {
		return r.ID
	}))
}
