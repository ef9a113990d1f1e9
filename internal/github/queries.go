package github

// The engine sends exactly these four query shapes.

const profileQuery = `
query($username: String!) {
  user(login: $username) {
    id
    name
    avatarUrl
    followers {
      totalCount
    }
    following {
      totalCount
    }
    createdAt
  }
}`

const repositoriesQuery = `
query($username: String!, $id: ID!, $since: GitTimestamp!, $until: GitTimestamp!, $first: Int!, $after: String) {
  user(login: $username) {
    repositories(first: $first, after: $after) {
      nodes {
        name
        stargazerCount
        forkCount
        isPrivate
        isFork
        createdAt
        languages(first: 100) {
          nodes {
            name
          }
        }
        defaultBranchRef {
          target {
            ... on Commit {
              history(first: 100, since: $since, until: $until, author: {id: $id}) {
                nodes {
                  message
                  committedDate
                }
                pageInfo {
                  hasNextPage
                  endCursor
                }
              }
            }
          }
        }
      }
      pageInfo {
        hasNextPage
        endCursor
      }
    }
  }
}`

const commitPageQuery = `
query($username: String!, $id: ID!, $since: GitTimestamp!, $until: GitTimestamp!, $repoName: String!, $after: String) {
  user(login: $username) {
    repository(name: $repoName) {
      defaultBranchRef {
        target {
          ... on Commit {
            history(first: 100, since: $since, until: $until, author: {id: $id}, after: $after) {
              nodes {
                message
                committedDate
              }
              pageInfo {
                hasNextPage
                endCursor
              }
            }
          }
        }
      }
    }
  }
}`

const contributionsQuery = `
query($username: String!, $from: DateTime!, $to: DateTime!) {
  user(login: $username) {
    contributionsCollection(from: $from, to: $to) {
      totalPullRequestContributions
      totalIssueContributions
      totalCommitContributions
      contributionCalendar {
        totalContributions
        weeks {
          contributionDays {
            date
            contributionCount
          }
        }
      }
    }
  }
}`
